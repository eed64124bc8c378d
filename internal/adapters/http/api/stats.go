package api

import (
	"maps"
	"net/http"
)

// StatsProvider reports the service counters shown on /stats.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
	push     PushEndpoint
}

// NewStatsHandler creates a stats handler. push may be nil.
func NewStatsHandler(provider StatsProvider, push PushEndpoint) *StatsHandler {
	return &StatsHandler{provider: provider, push: push}
}

// HandleStats writes the provider snapshot, adding pushClients when a push
// endpoint is mounted.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	out := make(map[string]interface{})
	if h.provider != nil {
		maps.Copy(out, h.provider.GetStats())
	}
	if h.push != nil {
		out["pushClients"] = h.push.ClientCount()
	}
	writeJSON(w, http.StatusOK, out)
}
