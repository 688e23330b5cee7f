package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/micro-nova/slimproto-go/internal/models"
	"github.com/micro-nova/slimproto-go/internal/wire"
)

// statusTickInterval is the status ticker's minimum re-entry period
// (spec.md §4.6: "every wake and at least every 100 ms"). A var, not a
// const, so tests can shrink it to exercise the idle watchdog without
// waiting out the real interval.
var statusTickInterval = 100 * time.Millisecond

// idleTimeout is how long the receive loop tolerates silence from the
// server before declaring the connection dead (spec.md §4.4). A var for
// the same reason as statusTickInterval.
var idleTimeout = 35 * time.Second

// runLoop is the receive pump + status-ticker loop for one connection. It
// returns when the connection dies, the server switches us away, or the
// controller is stopped; the caller (Run) handles reconnect/migration.
func (pc *PlayerContext) runLoop(ctx context.Context) {
	// readFrames blocks on the network read, so it only exits once Run
	// closes the connection after this loop returns — it is deliberately
	// not joined here to avoid that exact deadlock.
	frames := make(chan wire.Frame, 4)
	readErrs := make(chan error, 1)
	go pc.readFrames(pc.conn, frames, readErrs)

	ticker := time.NewTicker(statusTickInterval)
	defer ticker.Stop()

	lastFrame := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pc.wake:
			lastFrame = time.Now()
			pc.runStatusTicker()

		case <-ticker.C:
			if time.Since(lastFrame) > idleTimeout {
				slog.Warn("controller: idle timeout, treating connection as dead")
				return
			}
			pc.runStatusTicker()

		case err := <-readErrs:
			if err != nil && !errors.Is(err, io.EOF) {
				slog.Warn("controller: receive loop terminating", "err", err)
			}
			return

		case frame, ok := <-frames:
			if !ok {
				return
			}
			lastFrame = time.Now()
			pc.dispatch(frame)
			if newServer := pc.consumeNewServerPeek(); newServer != 0 {
				return
			}
			pc.runStatusTicker()
		}
	}
}

// readFrames reads length-prefixed frames off conn and forwards them on
// out; when a read fails it sends the error on errs and returns.
func (pc *PlayerContext) readFrames(conn net.Conn, out chan<- wire.Frame, errs chan<- error) {
	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			errs <- err
			return
		}
		select {
		case out <- frame:
		default:
			// receive loop exited without draining; drop and stop.
			return
		}
	}
}

// consumeNewServerPeek reports whether a migration has been requested
// without clearing it — the actual consumption happens once, in Run,
// after this loop returns.
func (pc *PlayerContext) consumeNewServerPeek() uint32 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.newServer
}

// dispatch prefix-matches the frame's 4-byte opcode against the ordered
// handler table (spec.md §4.4); unknown opcodes are logged and dropped.
func (pc *PlayerContext) dispatch(frame wire.Frame) {
	switch frame.Opcode {
	case "strm":
		pc.handleStrm(frame.Payload)
	case "cont":
		pc.handleCont(frame.Payload)
	case "codc":
		pc.handleCodc(frame.Payload)
	case "aude":
		pc.handleAude(frame.Payload)
	case "audg":
		pc.handleAudg(frame.Payload)
	case "setd":
		pc.handleSetd(frame.Payload)
	case "serv":
		pc.handleServ(frame.Payload)
	case "ledc":
		pc.handleLedc(frame.Payload)
	case "vers":
		pc.handleVers(frame.Payload)
	default:
		slog.Info("controller: unknown opcode, dropping", "opcode", frame.Opcode)
	}
}

// sendFrame transmits a pre-encoded frame on the control socket. Per
// spec.md §5, sends never occur while any sub-lock is held; callers must
// ensure that invariant.
func (pc *PlayerContext) sendFrame(frame []byte) {
	conn := pc.conn
	if conn == nil {
		return
	}
	if err := wire.SendFrame(conn, frame, pc.sendLimiter); err != nil {
		slog.Warn("controller: send failed", "err", err)
	}
}

func (pc *PlayerContext) sendSTAT(event string, serverTimestamp uint32) {
	pc.sendFrame(wire.EncodeSTAT(wire.STATParams{
		Event:           event,
		ServerTimestamp: serverTimestamp,
		Status:          pc.status,
	}, jiffies()))
}

func (pc *PlayerContext) sendDSCO(code models.DisconnectCode) {
	pc.sendFrame(wire.EncodeDSCO(code))
}

// jiffies is the controller's millisecond uptime clock, used as the STAT
// "now" field the server uses for jitter measurement.
var processStart = time.Now()

func jiffies() uint32 {
	return uint32(time.Since(processStart).Milliseconds())
}
