// Package api implements the controller's debug/status HTTP surface: a
// read-only view of the running player plus a server-sent-events stream of
// the bridge callbacks it would otherwise invoke directly.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/micro-nova/slimproto-go/internal/events"
	"github.com/micro-nova/slimproto-go/internal/models"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctrl Controller
	bus  *events.Bus
}

// Controller is the interface the handlers use to read controller state.
// internal/controller.PlayerContext satisfies this without internal/api
// needing to import internal/controller's full surface.
type Controller interface {
	Snapshot() models.PlayerSnapshot
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
