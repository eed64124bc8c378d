package api

import (
	"net/http"

	"github.com/okian/shotmatch/internal/domain/enrich"
	"github.com/okian/shotmatch/pkg/logger"
	"github.com/okian/shotmatch/pkg/metrics"
)

type shotResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

// HandleShot handles a launch-monitor shot message.
func (s *Server) HandleShot(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_shot"
	switch r.Method {
	case http.MethodPost:
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
		return
	}

	ev, err := enrich.Decode(http.MaxBytesReader(w, r.Body, defaultMaxBodyBytes))
	if err != nil {
		metrics.RecordShot(metrics.OutcomeMalformed)
		s.logger.Warn(r.Context(), "malformed shot payload", logger.String("remote", r.RemoteAddr), logger.Error(err))
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := s.deps.IngestShot(r.Context(), ev)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", Wrap(op, err))
		return
	}

	resp := shotResponse{Status: string(res.Status)}
	if res.Shot != nil {
		resp.ID = res.Shot.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
