// Package controller implements the SlimProto client controller: the
// connection manager, receive pump and opcode dispatcher, status ticker,
// and format negotiator that together drive one virtual player's control
// channel to a Logitech Media Server instance.
package controller

import (
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/micro-nova/slimproto-go/internal/collab"
	"github.com/micro-nova/slimproto-go/internal/config"
	"github.com/micro-nova/slimproto-go/internal/indicator"
	"github.com/micro-nova/slimproto-go/internal/mimetype"
	"github.com/micro-nova/slimproto-go/internal/models"
	"github.com/micro-nova/slimproto-go/internal/wire"
)

// cliIdleTimeout is how long an idle CLI sub-channel socket is kept open
// before the status ticker closes it (SPEC_FULL §4 item 1).
const cliIdleTimeout = 10 * time.Second

// PlayerContext is the live, per-player state the controller owns for its
// lifetime: sockets, mutexes, protocol bookkeeping, and handles to every
// external collaborator. Unlike internal/models, this type owns locks and
// network resources and is never copied.
type PlayerContext struct {
	mu sync.Mutex

	identity models.Identity
	cfg      config.Config
	cfgStore config.Store

	stream    collab.Stream
	decoder   collab.Decoder
	output    collab.Output
	metadata  collab.MetadataProvider
	mime      collab.MimeRegistry
	bridge    collab.Bridge
	indicator indicator.Indicator

	server       models.ServerBinding
	newServer    uint32  // non-zero network-order IP override; observed by the receive loop to trigger migration
	newServerCap *string // one-shot var_cap produced by `serv`, consumed by the next HELO only

	varCap string // per-session variable capability, e.g. ",SyncgroupID=..."

	reconnect bool // true once any connection has ended; sets wlan_channellist bit 0x4000

	lastCommand byte // last `strm` subcommand byte
	autostart   byte
	latches     models.Latches

	status          models.Status
	prevStreamState models.StreamState
	bytesReceived   uint64

	outIndex    uint32 // out.index, incremented each format negotiation
	renderIndex uint32 // render.index, the last successfully rendered out.index

	cliSock      net.Conn
	cliTimestamp time.Time

	lastSTMt time.Time
	lastICY  time.Time

	conn        net.Conn
	wake        chan struct{}
	sendLimiter *rate.Limiter // paces this player's own send retries; never shared (review comment 4)

	running bool
	done    chan struct{}
}

// Deps bundles every external collaborator a PlayerContext needs. Any nil
// field is filled with a harmless default (mocks / null indicator) so
// tests can supply only what they exercise.
type Deps struct {
	Stream    collab.Stream
	Decoder   collab.Decoder
	Output    collab.Output
	Metadata  collab.MetadataProvider
	Mime      collab.MimeRegistry
	Bridge    collab.Bridge
	Indicator indicator.Indicator
}

// New creates a PlayerContext bound to cfg and store, defaulting nil deps
// and restoring the persisted name and server. fixed_cap is not computed
// here: capabilities() rebuilds it from the current cfg and the decoder's
// supported codecs for every HELO (SPEC_FULL §4 item 4).
func New(identity models.Identity, cfg config.Config, store config.Store, deps Deps) *PlayerContext {
	if deps.Indicator == nil {
		deps.Indicator = indicator.NullIndicator{}
	}
	if deps.Stream == nil {
		deps.Stream = &collab.MockStream{}
	}
	if deps.Decoder == nil {
		deps.Decoder = &collab.MockDecoder{}
	}
	if deps.Output == nil {
		deps.Output = &collab.MockOutput{}
	}
	if deps.Metadata == nil {
		deps.Metadata = &collab.MockMetadataProvider{}
	}
	if deps.Mime == nil {
		deps.Mime = mimetype.Registry{}
	}
	if deps.Bridge == nil {
		deps.Bridge = &collab.MockBridge{}
	}

	pc := &PlayerContext{
		identity:    identity,
		cfg:         cfg,
		cfgStore:    store,
		stream:      deps.Stream,
		decoder:     deps.Decoder,
		output:      deps.Output,
		metadata:    deps.Metadata,
		mime:        deps.Mime,
		bridge:      deps.Bridge,
		indicator:   deps.Indicator,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		sendLimiter: wire.NewRetryLimiter(),
	}

	if store != nil {
		if persisted, err := store.Load(); err == nil && persisted != nil {
			if persisted.Name != "" {
				pc.cfg.Name = persisted.Name
			}
			if pc.cfg.Server == "?" && persisted.LastServerIP != "" {
				pc.server = models.ServerBinding{IP: persisted.LastServerIP, Port: persisted.LastServerPort}
			}
		}
	}
	return pc
}

// persist saves the player's name and last-known server binding so a
// restart with an auto-discovery config doesn't re-run discovery
// unnecessarily (SPEC_FULL §2, "Configuration").
func (pc *PlayerContext) persist() {
	if pc.cfgStore == nil {
		return
	}
	pc.mu.Lock()
	st := &config.PersistedState{
		Name:           pc.cfg.Name,
		LastServerIP:   pc.server.IP,
		LastServerPort: pc.server.Port,
	}
	pc.mu.Unlock()
	if err := pc.cfgStore.Save(st); err != nil {
		slog.Warn("controller: failed to persist player state", "err", err)
	}
}

// capabilities builds the Base+Fixed+Variable capability triple for the
// next HELO.
func (pc *PlayerContext) capabilities() models.Capabilities {
	caps := models.NewCapabilities(pc.cfg.SampleRate, pc.filteredCodecs())
	caps.Variable = pc.varCap
	return caps
}

// filteredCodecs intersects cfg.Codecs with the decoder's supported codec
// list, preserving cfg.Codecs' order. `thru` mode bypasses filtering
// entirely and is advertised verbatim (SPEC_FULL §4 item 4).
func (pc *PlayerContext) filteredCodecs() string {
	if strings.Contains(pc.cfg.Mode, "thru") || pc.decoder == nil {
		return pc.cfg.Codecs
	}
	supported := make(map[string]bool)
	for _, c := range strings.Split(pc.decoder.SupportedCodecs(), ",") {
		supported[strings.TrimSpace(c)] = true
	}
	var kept []string
	for _, c := range strings.Split(pc.cfg.Codecs, ",") {
		c = strings.TrimSpace(c)
		if supported[c] {
			kept = append(kept, c)
		}
	}
	return strings.Join(kept, ",")
}

// UpdateModeAndCodecs applies a live overrides.json reload (config.Watcher)
// to the running config. An empty mode or codecs
// value leaves the corresponding field untouched, since config.Watcher
// only reports fields that were actually present in the overrides file.
func (pc *PlayerContext) UpdateModeAndCodecs(mode, codecs string) {
	pc.mu.Lock()
	if mode != "" {
		pc.cfg.Mode = mode
	}
	if codecs != "" {
		pc.cfg.Codecs = codecs
	}
	pc.mu.Unlock()
}

// WakeForRediscovery clears a pinned-by-discovery server binding (one
// obtained via "?" auto-discovery, not an explicit cfg.Server address) and
// wakes the connection manager, giving netmonitor's NetworkManager
// fast-path a way to retry immediately instead of waiting out the
// reconnect sleep.
func (pc *PlayerContext) WakeForRediscovery() {
	pc.mu.Lock()
	if pc.cfg.Server == "?" {
		pc.server = models.ServerBinding{}
	}
	pc.mu.Unlock()
	pc.wakeUp()
}

// wakeUp signals the one-shot wake event, matching the `wake_e` semantics
// in spec.md §5: coalesced, cleared on observation.
func (pc *PlayerContext) wakeUp() {
	select {
	case pc.wake <- struct{}{}:
	default:
	}
}

// Stop marks the controller as shutting down and wakes the receive loop.
func (pc *PlayerContext) Stop() {
	pc.mu.Lock()
	pc.running = false
	pc.mu.Unlock()
	pc.wakeUp()
}

func (pc *PlayerContext) isRunning() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.running
}
