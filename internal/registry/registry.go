// Package registry catalogs reform documents for discovery by identifier.
//
// An identifier is a file base name without the .json extension. Built-in
// documents ship inside the binary; caller-supplied directories are scanned
// on every call and shadow built-ins with the same identifier, with later
// directories taking precedence. Files that fail validation are logged and
// skipped so one malformed reform cannot hide the rest of the catalog.
package registry

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/taxfoundry/policy-cli/internal/model"
	"github.com/taxfoundry/policy-cli/internal/reform"
)

//go:embed builtin/*.json
var builtinFS embed.FS

// ErrNotFound marks an identifier with no reform file or built-in behind it.
var ErrNotFound = eris.New("reform not found")

// Entry describes one catalogued reform document.
type Entry struct {
	ID         string           `json:"id"`
	Path       string           `json:"path,omitempty"`
	Builtin    bool             `json:"builtin"`
	Provenance model.Provenance `json:"provenance"`
	Params     []string         `json:"params"`
}

// Registry resolves reform identifiers against the built-in catalog and any
// number of reform directories.
type Registry struct {
	schema *model.Schema
	dirs   []string
}

// New builds a registry over a schema. Documents are validated against the
// schema when listed or loaded.
func New(s *model.Schema, dirs ...string) *Registry {
	return &Registry{schema: s, dirs: dirs}
}

// List returns every catalogued reform sorted by identifier. Unreadable
// directories and invalid documents are logged and skipped.
func (r *Registry) List() []Entry {
	byID := make(map[string]Entry)

	files, err := fs.ReadDir(builtinFS, "builtin")
	if err == nil {
		for _, f := range files {
			id := strings.TrimSuffix(f.Name(), ".json")
			data, err := builtinFS.ReadFile("builtin/" + f.Name())
			if err != nil {
				continue
			}
			doc, err := reform.Parse(data, r.schema)
			if err != nil {
				zap.L().Warn("registry: skipping invalid built-in reform",
					zap.String("id", id),
					zap.Error(err))
				continue
			}
			byID[id] = Entry{
				ID:         id,
				Builtin:    true,
				Provenance: doc.Provenance,
				Params:     doc.Params(),
			}
		}
	}

	for _, dir := range r.dirs {
		files, err := os.ReadDir(dir)
		if err != nil {
			zap.L().Warn("registry: skipping unreadable reform directory",
				zap.String("dir", dir),
				zap.Error(err))
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			path := filepath.Join(dir, f.Name())
			doc, err := reform.ParseFile(path, r.schema)
			if err != nil {
				zap.L().Warn("registry: skipping malformed reform file",
					zap.String("path", path),
					zap.Error(err))
				continue
			}
			id := strings.TrimSuffix(f.Name(), ".json")
			byID[id] = Entry{
				ID:         id,
				Path:       path,
				Provenance: doc.Provenance,
				Params:     doc.Params(),
			}
		}
	}

	out := make([]Entry, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Load parses and validates the reform with the given identifier, following
// the same precedence as List.
func (r *Registry) Load(id string) (*model.ReformDocument, error) {
	for i := len(r.dirs) - 1; i >= 0; i-- {
		path := filepath.Join(r.dirs[i], id+".json")
		if _, err := os.Stat(path); err == nil {
			return reform.ParseFile(path, r.schema)
		}
	}

	data, err := builtinFS.ReadFile("builtin/" + id + ".json")
	if err != nil {
		return nil, eris.Wrapf(ErrNotFound, "registry: unknown reform %q (searched %s)", id, r.searched())
	}
	doc, err := reform.Parse(data, r.schema)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: built-in reform %s", id)
	}
	return doc, nil
}

func (r *Registry) searched() string {
	if len(r.dirs) == 0 {
		return "the built-in catalog"
	}
	return strings.Join(r.dirs, ", ") + " and the built-in catalog"
}
