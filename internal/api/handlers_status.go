package api

import "net/http"

// getStatus returns the current player snapshot: identity, server binding,
// and the three collaborator lifecycle states.
func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}
