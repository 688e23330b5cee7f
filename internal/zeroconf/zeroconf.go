// Package zeroconf advertises the virtual SlimProto player's debug HTTP
// surface as an mDNS/DNS-SD service, so it's discoverable on the LAN for
// troubleshooting even though SlimProto discovery itself (internal/discovery)
// is UDP broadcast, not mDNS.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grandcat/zeroconf"
)

const serviceType = "_slimplayer._tcp"

// Service manages mDNS service registration for one player's debug surface.
type Service struct {
	name   string // instance name, the player's configured name
	mac    string // colon-separated MAC, carried in TXT for disambiguation
	port   int    // debug HTTP port
	server *zeroconf.Server
}

// New creates a new zeroconf Service advertising the debug HTTP port under
// the player's name and MAC.
func New(name, mac string, port int) *Service {
	return &Service{
		name: name,
		mac:  mac,
		port: port,
	}
}

// Start registers the mDNS service and blocks until ctx is cancelled, at
// which point it shuts down the server cleanly.
func (s *Service) Start(ctx context.Context) error {
	txt := []string{"model=slimplayer-go", "mac=" + s.mac}

	server, err := zeroconf.Register(
		s.name,
		serviceType,
		"local.",
		s.port,
		txt,
		nil, // ifaces — nil means all interfaces
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	s.server = server
	slog.Info("zeroconf: registered mDNS service",
		"name", s.name,
		"port", s.port,
		"txt", txt,
	)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}

// UpdateTXT updates the TXT records for the registered service.
// grandcat/zeroconf v1.0.0 does not expose a SetText method; to update TXT
// records the server must be restarted. This is a best-effort operation.
func (s *Service) UpdateTXT(records []string) error {
	if s.server == nil {
		return fmt.Errorf("zeroconf: server not started")
	}
	slog.Info("zeroconf: TXT update requested (requires service restart to apply)", "records", records)
	return nil
}
