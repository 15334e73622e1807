package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
)

// Provenance is the metadata carried in a reform file's comment header.
type Provenance struct {
	Title        string         `json:"title,omitempty"`
	Author       string         `json:"author,omitempty"`
	References   []string       `json:"references,omitempty"`
	Baseline     string         `json:"baseline,omitempty"`
	Description  []string       `json:"description,omitempty"`
	ParameterMap map[int]string `json:"parameter_map,omitempty"`
}

// ReformDocument is one parsed, schema-validated reform: provenance, the
// override cells, and any indexed-status flips. Documents are immutable once
// built; the digest is a content hash of the canonical body and is stable
// across formatting and ordering differences in the source file.
type ReformDocument struct {
	Provenance Provenance
	Overrides  *OverrideSet
	Flips      []IndexFlip

	digest string
}

// NewReformDocument assembles a document and computes its content digest.
// Flips are sorted by parameter then year.
func NewReformDocument(prov Provenance, overrides *OverrideSet, flips []IndexFlip) *ReformDocument {
	if overrides == nil {
		overrides = NewOverrideSet()
	}
	sorted := make([]IndexFlip, len(flips))
	copy(sorted, flips)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Param != sorted[j].Param {
			return sorted[i].Param < sorted[j].Param
		}
		return sorted[i].Year < sorted[j].Year
	})

	d := &ReformDocument{Provenance: prov, Overrides: overrides, Flips: sorted}
	body, _ := d.MarshalJSON()
	sum := sha256.Sum256(body)
	d.digest = hex.EncodeToString(sum[:])
	return d
}

// Digest returns the document's content hash.
func (d *ReformDocument) Digest() string {
	return d.digest
}

// Empty reports whether the document changes nothing.
func (d *ReformDocument) Empty() bool {
	return d.Overrides.Empty() && len(d.Flips) == 0
}

// Params returns every parameter the document touches, overrides first in
// first-appearance order, then flip-only parameters.
func (d *ReformDocument) Params() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range d.Overrides.Params() {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, f := range d.Flips {
		if !seen[f.Param] {
			seen[f.Param] = true
			out = append(out, f.Param)
		}
	}
	return out
}

// MarshalJSON emits the canonical reform body: parameter blocks keyed by
// name, year-keyed cells inside, and "-indexed" blocks for flips. Keys are
// sorted, so the output is deterministic and digest-stable.
func (d *ReformDocument) MarshalJSON() ([]byte, error) {
	body := make(map[string]map[string]any)
	for _, o := range d.Overrides.All() {
		block, ok := body[o.Param]
		if !ok {
			block = make(map[string]any)
			body[o.Param] = block
		}
		block[strconv.Itoa(o.Year)] = o.Value
	}
	for _, f := range d.Flips {
		key := f.Param + "-indexed"
		block, ok := body[key]
		if !ok {
			block = make(map[string]any)
			body[key] = block
		}
		block[strconv.Itoa(f.Year)] = f.Indexed
	}
	return json.Marshal(body)
}
