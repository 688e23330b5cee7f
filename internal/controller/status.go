package controller

import (
	"log/slog"
	"time"

	"github.com/micro-nova/slimproto-go/internal/models"
	"github.com/micro-nova/slimproto-go/internal/wire"
)

// streamDelayMS mirrors squeezelite's STREAM_DELAY: how close to the end
// of a remote, non-flow track we must be before STMd is allowed, so the
// source doesn't idle-timeout waiting for the next request.
const streamDelayMS = 5000

const icyUpdateInterval = 5 * time.Second

// runStatusTicker is one pass of the status ticker (spec.md §4.6): sample
// the three sub-domains under their own locks (each Snapshot() call is
// expected to lock/copy/unlock internally), compute which messages to
// emit, release every lock, then send in the fixed order
// DSCO, STMs, STMt, STMl, STMd, STMu, STMo, STMn, RESP, META.
func (pc *PlayerContext) runStatusTicker() {
	streamSnap := pc.stream.Snapshot()
	outSnap := pc.output.Snapshot()
	decSnap := pc.decoder.Snapshot()

	pc.mu.Lock()
	prevStream := pc.prevStreamState
	pc.prevStreamState = streamSnap.State
	latches := pc.latches
	autostart := pc.autostart
	pc.mu.Unlock()

	pc.status = buildStatus(streamSnap, outSnap, pc.status)

	var (
		sendDSCO          bool
		dscoCode          models.DisconnectCode
		sendSTMs          bool
		sendSTMt          bool
		sendSTMl          bool
		sendSTMd          bool
		sendSTMu          bool
		sendSTMo          bool
		sendSTMn          bool
		runDecoderOnLoad  bool
		runOutputOnLoad   bool
		stopDecoderOnDone bool
		disconnectStream  bool
		markRenderStopped bool
		stopOutput        bool
		clearFlow         bool
	)

	// DSCO — edge-triggered on a fresh transition into DISCONNECT.
	if streamSnap.State == models.StreamDisconnect && prevStream != models.StreamDisconnect {
		sendDSCO = true
		dscoCode = streamSnap.Disconnect
	}

	// STMs — output has consumed its first sample; one-shot via CanSTMdu.
	if outSnap.TrackStarted && !latches.CanSTMdu {
		sendSTMs = true
		latches.CanSTMdu = true
	}

	// STMn (stream failure) — self-gating via RenderStopped, which this
	// branch itself sets, so it cannot refire on the next tick.
	if streamSnap.Bytes == 0 && outSnap.Completed && !outSnap.RenderStopped {
		sendSTMn = true
		markRenderStopped = true
		latches.CanSTMdu = true
	}

	// STMu / STMo — fire exactly one once rendering has stopped, gated on
	// canSTMdu and each a one-shot latch. Both move output to STOPPED;
	// STMu additionally clears the flow flag (slimproto.c:670-681).
	if outSnap.RenderStopped && latches.CanSTMdu {
		if streamSnap.State == models.StreamStopped {
			if !latches.SentSTMu {
				sendSTMu = true
				latches.SentSTMu = true
				stopOutput = true
				clearFlow = true
			}
		} else {
			if !latches.SentSTMo {
				sendSTMo = true
				latches.SentSTMo = true
				stopOutput = true
			}
		}
	}

	// STMt — periodic tick roughly every 1s while decoding.
	if decSnap.State == models.DecodeRunning && time.Since(pc.lastSTMt) >= time.Second {
		sendSTMt = true
		pc.lastSTMt = time.Now()
	}

	// STMl — decoder loaded and the stream is delivering data.
	delivering := streamSnap.State == models.StreamBuffering || streamSnap.State == models.StreamHTTP || streamSnap.State == models.StreamFile
	if decSnap.State == models.DecodeReady && delivering && !latches.SentSTMl {
		latches.SentSTMl = true
		switch {
		case autostart == 0:
			runDecoderOnLoad = true
			sendSTMl = true
		case autostart == 1:
			runDecoderOnLoad = true
			runOutputOnLoad = true
			// server will not wait — no STMl emitted
		default:
			// autostart 2/3: await `cont` first.
		}
		pc.bridge.Play()
	}

	// STMd — decode complete, ready to request the next track.
	if !latches.SentSTMd {
		switch decSnap.State {
		case models.DecodeComplete:
			if latches.CanSTMdu && stmdEligible(outSnap, streamDelayMS) {
				sendSTMd = true
				latches.SentSTMd = true
				stopDecoderOnDone = true
				disconnectStream = streamSnap.State != models.StreamStopped
			}
		case models.DecodeError:
			sendSTMn = true
			stopDecoderOnDone = true
			disconnectStream = streamSnap.State != models.StreamStopped
		}
	}

	pc.mu.Lock()
	pc.latches = latches
	pc.mu.Unlock()

	if runDecoderOnLoad {
		pc.decoder.SetState(models.DecodeRunning)
	}
	if runOutputOnLoad {
		pc.output.SetState(models.OutputRunning)
	}
	if stopDecoderOnDone {
		pc.decoder.SetState(models.DecodeStopped)
	}
	if markRenderStopped {
		pc.output.MarkRenderStopped()
	}
	if stopOutput {
		pc.output.SetState(models.OutputStopped)
	}
	if clearFlow {
		pc.output.ClearFlow()
	}
	if disconnectStream {
		pc.stream.Disconnect()
	}

	pc.runICYRefresh(outSnap)
	pc.checkCLIIdle()

	// Emission, in the mandated fixed order.
	if sendDSCO {
		pc.sendDSCO(dscoCode)
		pc.stream.Disconnect()
	}
	if sendSTMs {
		pc.sendSTAT("STMs", 0)
	}
	if sendSTMt {
		pc.sendSTAT("STMt", 0)
	}
	if sendSTMl {
		pc.sendSTAT("STMl", 0)
	}
	if sendSTMd {
		pc.sendSTAT("STMd", 0)
	}
	if sendSTMu {
		pc.sendSTAT("STMu", 0)
	}
	if sendSTMo {
		pc.sendSTAT("STMo", 0)
	}
	if sendSTMn {
		pc.sendSTAT("STMn", 0)
	}
	if header := pc.stream.ConsumeHeader(); header != nil {
		pc.sendFrame(wire.EncodeRESP(header))
	}
	if meta := pc.stream.ConsumeMeta(); meta != nil {
		pc.sendFrame(wire.EncodeMETA(meta))
	}
}

// stmdEligible implements spec.md §4.6's STMd gate: flow mode, a local
// source, or a remote source close enough to its end to avoid an
// idle-timeout on the source side.
func stmdEligible(out models.OutputSnapshot, delayMS uint32) bool {
	if out.EncodeFlow || !out.Remote {
		return true
	}
	return out.Duration > out.MsPlayed && out.Duration-out.MsPlayed < delayMS
}

func buildStatus(stream models.StreamSnapshot, out models.OutputSnapshot, prev models.Status) models.Status {
	return models.Status{
		StreamFull:  0,
		StreamSize:  0,
		StreamBytes: stream.Bytes,
		OutputSize:  0,
		OutputFull:  0,
		SampleRate:  out.SampleRate,
		OutputReady: out.State == models.OutputRunning,
		Duration:    out.Duration,
		MsPlayed:    out.MsPlayed,
		LastSTMt:    prev.LastSTMt,
	}
}

func (pc *PlayerContext) runICYRefresh(outSnap models.OutputSnapshot) {
	if !pc.cfg.SendICY || outSnap.State != models.OutputRunning {
		return
	}
	if time.Since(pc.lastICY) < icyUpdateInterval {
		return
	}
	pc.lastICY = time.Now()
	meta, err := pc.metadata.GetMetadata(0)
	if err != nil {
		return
	}
	pc.output.SetICY(meta, false, jiffies())
}

func (pc *PlayerContext) checkCLIIdle() {
	if pc.cliSock != nil && time.Since(pc.cliTimestamp) > cliIdleTimeout {
		slog.Debug("controller: closing idle CLI socket")
		pc.closeCLISock()
	}
}

func (pc *PlayerContext) closeCLISock() {
	if pc.cliSock != nil {
		pc.cliSock.Close()
		pc.cliSock = nil
	}
}
