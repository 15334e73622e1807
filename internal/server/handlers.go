package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taxfoundry/policy-cli/internal/model"
	"github.com/taxfoundry/policy-cli/internal/reform"
	"github.com/taxfoundry/policy-cli/internal/registry"
	"github.com/taxfoundry/policy-cli/internal/resolve"
	"github.com/taxfoundry/policy-cli/internal/store"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type parameterSummary struct {
	Name       string          `json:"name"`
	Title      string          `json:"title,omitempty"`
	Kind       model.ValueKind `json:"kind"`
	Unit       model.Unit      `json:"unit"`
	Rule       model.IndexRule `json:"rule"`
	Indexable  bool            `json:"indexable"`
	ValidYears model.YearRange `json:"valid_years"`
	Value      *model.Value    `json:"value,omitempty"`
}

func (s *Server) handleListParameters(w http.ResponseWriter, r *http.Request) {
	var year *int
	if q := r.URL.Query().Get("year"); q != "" {
		y, err := strconv.Atoi(q)
		if err != nil {
			respondError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		if window := s.deps.Baseline.Window(); !window.Contains(y) {
			respondError(w, http.StatusBadRequest,
				fmt.Sprintf("year %d is outside the window %s", y, window))
			return
		}
		year = &y
	}

	specs := s.deps.Schema.Params
	out := make([]parameterSummary, 0, len(specs))
	for i := range specs {
		p := &specs[i]
		item := parameterSummary{
			Name:       p.Name,
			Title:      p.Title,
			Kind:       p.Kind,
			Unit:       p.Unit,
			Rule:       p.Rule,
			Indexable:  p.Indexable,
			ValidYears: p.ValidYears,
		}
		if year != nil {
			if v, err := s.deps.Baseline.Get(p.Name, *year); err == nil {
				item.Value = &v
			}
		}
		out = append(out, item)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetParameter(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	spec, err := s.deps.Schema.Lookup(name)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	window := s.deps.Baseline.Window()
	series, err := s.deps.Baseline.Series(name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "baseline lookup failed")
		return
	}
	baseline := make(map[int]model.Value, len(series))
	for i, v := range series {
		baseline[window.First+i] = v
	}

	respondJSON(w, http.StatusOK, struct {
		*model.ParameterSpec
		Baseline map[int]model.Value `json:"baseline"`
	}{spec, baseline})
}

func (s *Server) handleListReforms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Registry.List())
}

type reformDetail struct {
	ID         string           `json:"id"`
	Provenance model.Provenance `json:"provenance"`
	Digest     string           `json:"digest"`
	Body       json.RawMessage  `json:"body"`
}

func (s *Server) handleGetReform(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.deps.Registry.Load(id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	body, err := doc.MarshalJSON()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "encode reform body failed")
		return
	}
	respondJSON(w, http.StatusOK, reformDetail{
		ID:         id,
		Provenance: doc.Provenance,
		Digest:     doc.Digest(),
		Body:       body,
	})
}

type resolveRequest struct {
	Reforms  []string         `json:"reforms,omitempty"`
	Document json.RawMessage  `json:"document,omitempty"`
	Params   []string         `json:"params,omitempty"`
	Years    *model.YearRange `json:"years,omitempty"`
}

type resolveResponse struct {
	Version string                         `json:"version"`
	Window  model.YearRange                `json:"window"`
	Reforms []string                       `json:"reforms,omitempty"`
	Cached  bool                           `json:"cached"`
	Values  map[string]map[int]model.Value `json:"values"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		docs  []*model.ReformDocument
		names []string
	)
	for _, id := range req.Reforms {
		doc, err := s.deps.Registry.Load(id)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				respondError(w, http.StatusNotFound, err.Error())
				return
			}
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		docs = append(docs, doc)
		names = append(names, id)
	}
	if len(req.Document) > 0 {
		doc, err := reform.Parse(req.Document, s.deps.Schema)
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		docs = append(docs, doc)
		names = append(names, "inline")
	}

	ctx := r.Context()
	key := resolve.CacheKey(s.deps.Baseline.Version(), docs...)

	var (
		tl     *model.Timeline
		cached bool
	)
	if s.deps.Store != nil {
		hit, err := s.deps.Store.GetTimeline(ctx, key)
		if err != nil {
			zap.L().Warn("timeline cache lookup failed", zap.Error(err))
		} else if hit != nil {
			tl, cached = hit, true
		}
	}
	if tl == nil {
		resolved, err := s.deps.Resolver.Resolve(s.deps.Baseline, docs...)
		if err != nil {
			if isDomainError(err) {
				respondError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			zap.L().Error("resolve failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "resolve failed")
			return
		}
		tl = resolved
		if s.deps.Store != nil {
			if err := s.deps.Store.PutTimeline(ctx, key, tl); err != nil {
				zap.L().Warn("timeline cache write failed", zap.Error(err))
			}
		}
	}

	if s.deps.Store != nil {
		digests := make([]string, len(docs))
		for i, d := range docs {
			digests[i] = d.Digest()
		}
		_, err := s.deps.Store.RecordResolution(ctx, store.Resolution{
			Key:      key,
			Baseline: s.deps.Baseline.Version(),
			Reforms:  names,
			Digests:  digests,
		})
		if err != nil {
			zap.L().Warn("resolution log write failed", zap.Error(err))
		}
	}

	window := tl.Window()
	if req.Years != nil {
		yr := *req.Years
		if yr.First > yr.Last || !window.Contains(yr.First) || !window.Contains(yr.Last) {
			respondError(w, http.StatusBadRequest,
				fmt.Sprintf("years %s must fall within the window %s", yr, window))
			return
		}
		window = yr
	}

	params := tl.Params()
	if len(req.Params) > 0 {
		for _, p := range req.Params {
			if !tl.Has(p) {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown parameter %q", p))
				return
			}
		}
		params = req.Params
	}

	values := make(map[string]map[int]model.Value, len(params))
	for _, p := range params {
		byYear := make(map[int]model.Value, window.Len())
		for y := window.First; y <= window.Last; y++ {
			v, err := tl.Get(p, y)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "timeline lookup failed")
				return
			}
			byYear[y] = v
		}
		values[p] = byYear
	}

	respondJSON(w, http.StatusOK, resolveResponse{
		Version: tl.Version(),
		Window:  window,
		Reforms: names,
		Cached:  cached,
		Values:  values,
	})
}

// isDomainError reports whether err wraps one of the typed validation
// errors, which map to a 422 rather than a server fault.
func isDomainError(err error) bool {
	var (
		up *model.UnknownParameterError
		iy *model.InvalidYearError
		tm *model.TypeMismatchError
		ob *model.OutOfBoundsError
		do *model.DuplicateOverrideError
		im *model.IndexingDataMissingError
	)
	return errors.As(err, &up) || errors.As(err, &iy) || errors.As(err, &tm) ||
		errors.As(err, &ob) || errors.As(err, &do) || errors.As(err, &im)
}
