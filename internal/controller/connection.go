package controller

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/micro-nova/slimproto-go/internal/discovery"
	"github.com/micro-nova/slimproto-go/internal/models"
	"github.com/micro-nova/slimproto-go/internal/wire"
)

const (
	dialTimeout         = 5 * time.Second
	reconnectSleep      = 5 * time.Second
	maxConsecutiveFails = 5
)

// Run is the top-level connection manager: discover (if needed), connect,
// send HELO, run the receive/status loop, and on loop exit either
// reconnect or migrate to a server-switch target, until ctx is cancelled
// or Stop is called.
func (pc *PlayerContext) Run(ctx context.Context) error {
	pc.mu.Lock()
	pc.running = true
	pc.mu.Unlock()

	fails := 0
	for pc.isRunning() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if pc.server.IP == "" {
			if err := pc.discover(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
		}

		if err := pc.connectOnce(ctx); err != nil {
			slog.Warn("controller: connect failed", "server", pc.server.IP, "err", err)
			fails++
			if fails >= maxConsecutiveFails && pc.cfg.Server == "?" {
				slog.Info("controller: too many consecutive failures, re-running discovery")
				pc.server = models.ServerBinding{}
				fails = 0
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectSleep):
			case <-pc.wake:
				// netmonitor's fast path: network came back, retry now
				// instead of waiting out the rest of reconnectSleep.
			}
			continue
		}
		fails = 0

		pc.runLoop(ctx)

		pc.teardownConn()
		pc.reconnect = true

		if target := pc.consumeNewServer(); target != 0 {
			pc.server = models.ServerBinding{IP: ipv4ToString(target), Port: pc.server.Port, CLIPort: pc.server.CLIPort}
			slog.Info("controller: migrating to new server", "ip", pc.server.IP)
		}
	}
	close(pc.done)
	return nil
}

// discover runs the UDP probe and records the result on PlayerContext.
func (pc *PlayerContext) discover(ctx context.Context) error {
	target := pc.cfg.Server
	if target == "?" || target == "" {
		target = "255.255.255.255"
	} else if host, _, err := net.SplitHostPort(target); err == nil {
		target = host
	}
	res, err := discovery.Probe(ctx, target)
	if err != nil {
		return fmt.Errorf("controller: discovery: %w", err)
	}
	pc.server = models.ServerBinding{IP: res.ServerIP, Port: res.TCPPort, CLIPort: res.CLIPort, Version: res.Version}
	return nil
}

// connectOnce dials the control socket and sends HELO.
func (pc *PlayerContext) connectOnce(ctx context.Context) error {
	addr := net.JoinHostPort(pc.server.IP, strconv.Itoa(int(pc.server.Port)))
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	pc.conn = conn

	pc.mu.Lock()
	pc.varCap = ""
	if pc.newServerCap != nil {
		pc.varCap = *pc.newServerCap
		pc.newServerCap = nil
	}
	caps := pc.capabilities()
	reconnect := pc.reconnect
	mac := pc.identity.MAC
	pc.mu.Unlock()

	frame := wire.EncodeHELO(wire.HELOParams{
		Reconnect:     reconnect,
		MAC:           mac,
		BytesReceived: pc.bytesReceived,
		Capabilities:  caps,
	})
	if err := wire.SendFrame(conn, frame, pc.sendLimiter); err != nil {
		conn.Close()
		pc.conn = nil
		return fmt.Errorf("send HELO: %w", err)
	}
	slog.Info("controller: connected", "server", pc.server.IP, "port", pc.server.Port, "reconnect", reconnect)
	pc.persist()
	return nil
}

func (pc *PlayerContext) teardownConn() {
	if pc.conn != nil {
		pc.conn.Close()
		pc.conn = nil
	}
	pc.closeCLISock()
}

func (pc *PlayerContext) consumeNewServer() uint32 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	target := pc.newServer
	pc.newServer = 0
	return target
}

func ipv4ToString(be uint32) string {
	return net.IPv4(byte(be>>24), byte(be>>16), byte(be>>8), byte(be)).String()
}
