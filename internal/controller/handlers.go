package controller

import (
	"log/slog"
	"net"

	"github.com/micro-nova/slimproto-go/internal/models"
	"github.com/micro-nova/slimproto-go/internal/wire"
)

// maxNameLen mirrors the original's _STR_LEN_ player-name buffer, applied
// safely here (spec.md §9 / SPEC_FULL §4 item 7) — a slice truncation, not
// a fixed-buffer strncpy that can overrun.
const maxNameLen = 128

// maxHeaderLen bounds the HTTP request header carried after a `strm s`
// fixed struct; strmFixedLen (24 bytes) plus this adds up to exactly
// wire.MaxFrameSize.
const maxHeaderLen = wire.MaxFrameSize - 24

func (pc *PlayerContext) handleStrm(payload []byte) {
	p, err := wire.DecodeStrm(payload)
	if err != nil {
		slog.Warn("controller: malformed strm, dropping", "err", err)
		return
	}

	prevCommand := pc.lastCommand
	pc.lastCommand = p.Command

	switch p.Command {
	case 't':
		pc.sendSTAT("STMt", p.ReplayGain)

	case 'f':
		pc.flushAll()
		pc.sendSTAT("STMf", 0)

	case 'q':
		pc.flushAll()
		pc.sendSTAT("STMf", 0)
		if prevCommand != 'q' {
			pc.bridge.Stop()
		}

	case 'p':
		if p.ReplayGain == 0 {
			pc.output.SetState(models.OutputWaiting)
			pc.bridge.Pause()
			pc.sendSTAT("STMp", 0)
		} else {
			slog.Info("controller: strm p with non-zero interval, not honored", "interval", p.ReplayGain)
		}

	case 'a':
		slog.Info("controller: strm a (skip-ahead) ignored")

	case 'u':
		pc.output.SetStartAt(p.ReplayGain)
		pc.output.SetState(models.OutputRunning)
		pc.bridge.Unpause()
		pc.sendSTAT("STMr", 0)

	case 's':
		pc.handleStrmStart(p)

	default:
		slog.Warn("controller: unknown strm subcommand", "command", string(p.Command))
	}
}

func (pc *PlayerContext) handleStrmStart(p wire.StrmPacket) {
	pc.mu.Lock()
	pc.autostart = p.Autostart - '0'
	pc.latches.Reset()
	pc.mu.Unlock()

	pc.sendSTAT("STMf", 0)
	pc.output.SetTransition(int(p.TransitionType), int(p.TransitionPeriod), p.ReplayGain)

	header := p.Header
	if len(header) > maxHeaderLen {
		header = header[:maxHeaderLen]
	}

	ok := true
	if p.Format != '?' {
		ok = pc.negotiateFormat(formatFields{
			Format:        p.Format,
			SampleSizeIdx: p.PCMSampleSize,
			SampleRateIdx: p.PCMSampleRate,
			ChannelsIdx:   p.PCMChannels,
			Endianness:    p.PCMEndianness,
		}, pc.autostart)
	} else if pc.autostart < 2 {
		slog.Warn("controller: strm s with unknown format and autostart<2")
		ok = false
	}
	// else: autostart >= 2, format arrives later via `codc`.

	ip := pc.server.IP
	if p.ServerIP != 0 {
		ip = ipv4ToString(p.ServerIP)
	}
	port := p.ServerPort
	if port == 0 {
		port = pc.server.Port
	}

	if err := pc.stream.Connect(net.ParseIP(ip), port, header, uint32(p.Threshold)*1024, pc.autostart >= 2); err != nil {
		slog.Warn("controller: stream connect failed", "err", err)
		ok = false
	}

	pc.sendSTAT("STMc", 0)

	if !ok {
		pc.sendSTAT("STMn", 0)
	}
}

func (pc *PlayerContext) flushAll() {
	pc.decoder.Flush()
	pc.output.Flush()
	pc.status.MsPlayed = 0
	pc.stream.Flush()
}

func (pc *PlayerContext) handleCont(payload []byte) {
	p, err := wire.DecodeCont(payload)
	if err != nil {
		slog.Warn("controller: malformed cont, dropping", "err", err)
		return
	}

	pc.mu.Lock()
	if pc.autostart > 1 {
		pc.autostart -= 2
	}
	pc.mu.Unlock()

	snap := pc.stream.Snapshot()
	if snap.State == models.StreamWait {
		// The controller does not move the stream from WAIT to BUFFERING
		// and does not store the meta-interval: it only logs the interval
		// when the stream is in WAIT. Only the autostart guard above
		// changes state.
		slog.Debug("controller: cont received while stream in WAIT", "meta_interval", p.MetaInt)
	}
	pc.wakeUp()
}

func (pc *PlayerContext) handleCodc(payload []byte) {
	p, err := wire.DecodeCodc(payload)
	if err != nil {
		slog.Warn("controller: malformed codc, dropping", "err", err)
		return
	}
	ok := pc.negotiateFormat(formatFields{
		Format:        p.Format,
		SampleSizeIdx: p.PCMSampleSize,
		SampleRateIdx: p.PCMSampleRate,
		ChannelsIdx:   p.PCMChannels,
		Endianness:    p.PCMEndianness,
	}, pc.autostart)
	if !ok {
		pc.sendSTAT("STMn", 0)
	}
}

func (pc *PlayerContext) handleAude(payload []byte) {
	p, err := wire.DecodeAude(payload)
	if err != nil {
		slog.Warn("controller: malformed aude, dropping", "err", err)
		return
	}
	on := p.EnableSPDIF != 0 || p.EnableDAC != 0
	pc.bridge.OnOff(on)
}

// handleAudg preserves the original's gain-averaging bug bug-for-bug: it
// averages old_gainL with itself instead of old_gainL with old_gainR.
// spec.md §9 requires this NOT be "fixed".
func (pc *PlayerContext) handleAudg(payload []byte) {
	p, err := wire.DecodeAudg(payload)
	if err != nil {
		slog.Warn("controller: malformed audg, dropping", "err", err)
		return
	}
	avg := (p.OldGainL + p.OldGainL) / 2
	if p.Adjust != 0 {
		pc.bridge.Volume(uint16(avg))
	}
}

func (pc *PlayerContext) handleSetd(payload []byte) {
	p, err := wire.DecodeSetd(payload)
	if err != nil {
		slog.Warn("controller: malformed setd, dropping", "err", err)
		return
	}
	if p.ID != 0 {
		slog.Debug("controller: setd for unhandled id, dropping", "id", p.ID)
		return
	}

	if len(p.Data) == 0 {
		pc.mu.Lock()
		name := pc.cfg.Name
		pc.mu.Unlock()
		pc.sendFrame(wire.EncodeSETDName(name))
		return
	}

	name := string(p.Data)
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	pc.mu.Lock()
	pc.cfg.Name = name
	pc.mu.Unlock()

	pc.sendFrame(wire.EncodeSETDName(name))
	pc.bridge.SetName(name)
	pc.persist()
}

func (pc *PlayerContext) handleServ(payload []byte) {
	p, err := wire.DecodeServ(payload)
	if err != nil {
		slog.Warn("controller: malformed serv, dropping", "err", err)
		return
	}

	pc.mu.Lock()
	pc.newServer = p.ServerIP
	if p.SyncGroupID != nil {
		capStr := ",SyncgroupID=" + string(p.SyncGroupID)
		pc.newServerCap = &capStr
	}
	pc.mu.Unlock()

	pc.bridge.SetServer(p.ServerIP)
}

func (pc *PlayerContext) handleLedc(payload []byte) {
	slog.Info("controller: ledc received", "payload_len", len(payload))
}

func (pc *PlayerContext) handleVers(payload []byte) {
	p, err := wire.DecodeVers(payload)
	if err != nil {
		slog.Warn("controller: malformed vers, dropping", "err", err)
		return
	}
	slog.Info("controller: server version", "version", p.Version)
}
