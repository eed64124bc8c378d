package api

import (
	"errors"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"

	"github.com/okian/shotmatch/internal/domain/model"
)

var validate = validator.New()

// lookupRequest is the body of POST /api/tm-lookup.
type lookupRequest struct {
	Speed *float64 `json:"speed" validate:"required"`
	VLA   *float64 `json:"vla" validate:"required"`
}

type lookupResponse struct {
	TM *model.ReferenceShot `json:"tm"`
}

// batchItem is one element of POST /api/tm-lookup-batch. ID is echoed as sent.
type batchItem struct {
	ID    json.RawMessage `json:"id"`
	Speed *float64        `json:"speed" validate:"required"`
	VLA   *float64        `json:"vla" validate:"required"`
}

type batchResult struct {
	ID json.RawMessage      `json:"id"`
	TM *model.ReferenceShot `json:"tm"`
}

type batchResponse struct {
	Results []batchResult `json:"results"`
}

type backfillResponse struct {
	Shots    []model.EnrichedShot `json:"shots"`
	Enriched int                  `json:"enriched"`
}

// HandleLookup handles POST /api/tm-lookup.
func (s *Server) HandleLookup(w http.ResponseWriter, r *http.Request) {
	const op = "api.tm_lookup"
	if !requirePost(w, r, op) {
		return
	}
	var req lookupRequest
	if err := decodeBody(w, r, defaultMaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, validationMessage(err)))
		return
	}

	tm, err := s.deps.Lookup(r.Context(), *req.Speed, *req.VLA)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{TM: tm})
}

// HandleLookupBatch handles POST /api/tm-lookup-batch.
func (s *Server) HandleLookupBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.tm_lookup_batch"
	if !requirePost(w, r, op) {
		return
	}
	var items []batchItem
	if err := decodeBody(w, r, maxBatchBodyBytes, &items); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(items) > s.maxBatch {
		writeError(w, http.StatusBadRequest, "batch_too_large",
			WrapKind(op, ErrBatchTooLarge, fmt.Errorf("%d items, limit %d", len(items), s.maxBatch)))
		return
	}
	queries := make([]model.LookupQuery, len(items))
	for i, it := range items {
		if err := validate.Struct(it); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, fmt.Errorf("item %d: %w", i, validationMessage(err))))
			return
		}
		queries[i] = model.LookupQuery{Speed: *it.Speed, VLA: *it.VLA}
	}

	refs, err := s.deps.LookupBatch(r.Context(), queries)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	resp := batchResponse{Results: make([]batchResult, len(items))}
	for i, it := range items {
		id := it.ID
		if len(id) == 0 {
			id = json.RawMessage("null")
		}
		resp.Results[i] = batchResult{ID: id, TM: refs[i]}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleBackfill handles POST /api/shots/backfill.
func (s *Server) HandleBackfill(w http.ResponseWriter, r *http.Request) {
	const op = "api.backfill"
	if !requirePost(w, r, op) {
		return
	}
	var shots []model.EnrichedShot
	if err := decodeBody(w, r, maxBatchBodyBytes, &shots); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	out, filled, err := s.deps.Backfill(r.Context(), shots)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	if out == nil {
		out = []model.EnrichedShot{}
	}
	writeJSON(w, http.StatusOK, backfillResponse{Shots: out, Enriched: filled})
}

func requirePost(w http.ResponseWriter, r *http.Request, op string) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// validationMessage turns validator output into "<field> is required".
func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := jsonName(fe.Field())
	if fe.Tag() == "required" {
		return fmt.Errorf("%s is required", field)
	}
	return fmt.Errorf("%s failed %s", field, fe.Tag())
}

func jsonName(field string) string {
	switch field {
	case "Speed":
		return "speed"
	case "VLA":
		return "vla"
	default:
		return field
	}
}
