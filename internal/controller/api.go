package controller

import "github.com/micro-nova/slimproto-go/internal/models"

// Snapshot returns a read-only view of the controller for the debug HTTP
// surface (internal/api), sampled the same way the status ticker samples
// its collaborators: lock PlayerContext's own fields, call each
// collaborator's own locking Snapshot(), release before returning.
func (pc *PlayerContext) Snapshot() models.PlayerSnapshot {
	pc.mu.Lock()
	identity := pc.identity
	server := pc.server
	name := pc.cfg.Name
	reconnect := pc.reconnect
	bytesReceived := pc.bytesReceived
	connected := pc.conn != nil
	pc.mu.Unlock()

	return models.PlayerSnapshot{
		Identity:      identity,
		Server:        server,
		Name:          name,
		Connected:     connected,
		Reconnect:     reconnect,
		StreamState:   pc.stream.Snapshot().State,
		DecodeState:   pc.decoder.Snapshot().State,
		OutputState:   pc.output.Snapshot().State,
		BytesReceived: bytesReceived,
	}
}

// Name reports the player's currently configured name (SETD id=0).
func (pc *PlayerContext) Name() string {
	return pc.Snapshot().Name
}
