package server

import (
	"errors"
	"net/http"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/ringvec"
	"github.com/hupe1980/ringvec/embed"
	"github.com/hupe1980/ringvec/model"
)

type insertRequest struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"vector"`
	Metadata string    `json:"metadata"`
}

type insertResponse struct {
	ID string `json:"id"`
}

type searchRequest struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
	K      *int      `json:"k"`
}

type hitResponse struct {
	ID       string  `json:"id"`
	Metadata string  `json:"metadata"`
	Score    float32 `json:"score"`
}

type searchResponse struct {
	Hits []hitResponse `json:"hits"`
}

type shardStatsResponse struct {
	Shard    int    `json:"shard"`
	Records  int    `json:"records"`
	Capacity int    `json:"capacity"`
	Inserts  uint64 `json:"inserts"`
}

type statsResponse struct {
	Records   int                  `json:"records"`
	Capacity  int                  `json:"capacity"`
	Inserts   uint64               `json:"inserts"`
	Dimension int                  `json:"dimension"`
	Metric    string               `json:"metric"`
	Workers   int                  `json:"workers"`
	Scans     uint64               `json:"scans"`
	Shards    []shardStatsResponse `json:"shards"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if !decode(w, r, &req) {
		return
	}

	switch {
	case len(req.Vector) > 0:
		if strings.TrimSpace(req.ID) == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "id required with vector")
			return
		}
		if err := s.store.Insert(r.Context(), req.ID, req.Vector, req.Metadata); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, insertResponse{ID: req.ID})

	case strings.TrimSpace(req.Text) != "":
		if s.opts.Pipeline == nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "text requests need an embedder")
			return
		}
		if req.ID != "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "ids are assigned for text records")
			return
		}
		id, err := s.opts.Pipeline.IngestText(r.Context(), strings.TrimSpace(req.Text))
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, insertResponse{ID: id})

	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "text or vector required")
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}

	k := defaultK
	if req.K != nil {
		k = *req.K
	}
	if k < 0 || k > maxK {
		writeError(w, http.StatusBadRequest, "invalid_request", "k must be between 0 and 1000")
		return
	}

	var (
		hits []model.Hit
		err  error
	)
	switch {
	case len(req.Vector) > 0:
		hits, err = s.store.Search(r.Context(), req.Vector, k)
	case strings.TrimSpace(req.Text) != "":
		if s.opts.Pipeline == nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "text requests need an embedder")
			return
		}
		hits, err = s.opts.Pipeline.SearchText(r.Context(), req.Text, k)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "text or vector required")
		return
	}
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp := searchResponse{Hits: make([]hitResponse, len(hits))}
	for i, h := range hits {
		resp.Hits[i] = hitResponse{ID: h.ID(), Metadata: h.Metadata(), Score: h.Score}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	st := s.store.Stats()

	resp := statsResponse{
		Records:   st.Len,
		Capacity:  st.Capacity,
		Inserts:   st.Inserts,
		Dimension: st.Dimension,
		Metric:    strings.ToLower(st.Metric.String()),
		Workers:   st.Workers,
		Scans:     st.Scans,
		Shards:    make([]shardStatsResponse, len(st.Shards)),
	}
	for i, sh := range st.Shards {
		resp.Shards[i] = shardStatsResponse{
			Shard:    sh.Shard,
			Records:  sh.Len,
			Capacity: sh.Capacity,
			Inserts:  sh.Inserts,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var (
		dm *ringvec.ErrDimensionMismatch
		id *ringvec.ErrInvalidDimension
	)
	switch {
	case errors.As(err, &dm), errors.As(err, &id):
		writeError(w, http.StatusBadRequest, "dimension_mismatch", err.Error())
	case errors.Is(err, embed.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ringvec.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := gojson.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = gojson.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errStr, message string) {
	writeJSON(w, status, apiError{Error: errStr, Message: message, Code: status})
}
