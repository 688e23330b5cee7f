package controller

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/micro-nova/slimproto-go/internal/collab"
	"github.com/micro-nova/slimproto-go/internal/config"
	"github.com/micro-nova/slimproto-go/internal/models"
	"github.com/micro-nova/slimproto-go/internal/wire"
)

// testHarness bundles a PlayerContext with its mocked collaborators and a
// live net.Pipe standing in for the control socket, so sendFrame's nil-conn
// guard never short-circuits the behavior under test.
type testHarness struct {
	pc      *PlayerContext
	stream  *collab.MockStream
	decoder *collab.MockDecoder
	output  *collab.MockOutput
	bridge  *collab.MockBridge
	store   *config.MemStore
	server  net.Conn // the "server" end; test reads frames pc.sendFrame writes

	frames chan wire.Frame
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	stream := &collab.MockStream{}
	decoder := &collab.MockDecoder{}
	output := &collab.MockOutput{}
	bridge := &collab.MockBridge{}
	store := config.NewMemStore()

	cfg := config.DefaultConfig()
	cfg.Server = "10.0.0.5"
	identity := models.Identity{MAC: [6]byte{1, 2, 3, 4, 5, 6}, Name: "Test"}

	pc := New(identity, cfg, store, Deps{
		Stream:  stream,
		Decoder: decoder,
		Output:  output,
		Bridge:  bridge,
	})

	client, server := net.Pipe()
	pc.conn = client

	frames := make(chan wire.Frame, 32)
	go func() {
		for {
			f, err := readSentFrame(server)
			if err != nil {
				close(frames)
				return
			}
			frames <- f
		}
	}()

	h := &testHarness{pc: pc, stream: stream, decoder: decoder, output: output, bridge: bridge, store: store, server: server, frames: frames}
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return h
}

func (h *testHarness) expectFrame(t *testing.T, opcode string) wire.Frame {
	t.Helper()
	select {
	case f, ok := <-h.frames:
		if !ok {
			t.Fatalf("frame channel closed waiting for %s", opcode)
		}
		if f.Opcode != opcode {
			t.Fatalf("got opcode %q, want %q", f.Opcode, opcode)
		}
		return f
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", opcode)
	}
	return wire.Frame{}
}

func (h *testHarness) expectNoFrame(t *testing.T) {
	t.Helper()
	select {
	case f, ok := <-h.frames:
		if ok {
			t.Fatalf("unexpected frame %q", f.Opcode)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

// strmFixedPayloadLen mirrors wire's unexported strmFixedLen (24 bytes):
// the fixed portion of a `strm` payload before any optional HTTP header.
const strmFixedPayloadLen = 24

func rawStrmPayload(command, autostart, format byte) []byte {
	p := make([]byte, strmFixedPayloadLen)
	p[0] = command
	p[1] = autostart
	p[2] = format
	return p
}

func TestNew_DefaultsAllCollaboratorsWhenDepsEmpty(t *testing.T) {
	pc := New(models.Identity{}, config.DefaultConfig(), config.NewMemStore(), Deps{})
	if _, ok := pc.stream.(*collab.MockStream); !ok {
		t.Errorf("stream default = %T, want *collab.MockStream", pc.stream)
	}
	if _, ok := pc.decoder.(*collab.MockDecoder); !ok {
		t.Errorf("decoder default = %T, want *collab.MockDecoder", pc.decoder)
	}
	if _, ok := pc.output.(*collab.MockOutput); !ok {
		t.Errorf("output default = %T, want *collab.MockOutput", pc.output)
	}
	if _, ok := pc.bridge.(*collab.MockBridge); !ok {
		t.Errorf("bridge default = %T, want *collab.MockBridge", pc.bridge)
	}
	if pc.indicator == nil {
		t.Error("indicator default = nil, want NullIndicator")
	}
	if pc.mime == nil {
		t.Error("mime default = nil, want mimetype.Registry")
	}
}

func TestNew_SeedsNameAndServerFromPersistedState(t *testing.T) {
	store := config.NewMemStore()
	store.Save(&config.PersistedState{Name: "Kitchen", LastServerIP: "192.168.1.10", LastServerPort: 3483})

	cfg := config.DefaultConfig() // Server: "?"
	pc := New(models.Identity{}, cfg, store, Deps{})

	if pc.cfg.Name != "Kitchen" {
		t.Errorf("cfg.Name = %q, want Kitchen", pc.cfg.Name)
	}
	if pc.server.IP != "192.168.1.10" || pc.server.Port != 3483 {
		t.Errorf("server = %+v, want 192.168.1.10:3483", pc.server)
	}
}

func TestNew_ExplicitServerConfigNotOverriddenByPersistedState(t *testing.T) {
	store := config.NewMemStore()
	store.Save(&config.PersistedState{LastServerIP: "192.168.1.10", LastServerPort: 3483})

	cfg := config.DefaultConfig()
	cfg.Server = "10.0.0.5" // explicit, not "?"
	pc := New(models.Identity{}, cfg, store, Deps{})

	if pc.server.IP != "" {
		t.Errorf("server = %+v, want zero-value (explicit server config wins)", pc.server)
	}
}

func TestHandleSetd_QueryRepliesWithCurrentName(t *testing.T) {
	h := newHarness(t)
	h.pc.cfg.Name = "Living Room"

	h.pc.handleSetd([]byte{0}) // id=0, no data: a query

	frame := h.expectFrame(t, "SETD")
	p, err := wire.DecodeSetd(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeSetd: %v", err)
	}
	if string(p.Data) != "Living Room" {
		t.Errorf("replied name = %q, want Living Room", p.Data)
	}
	if len(h.bridge.Calls) != 0 {
		t.Errorf("bridge calls on a query = %v, want none", h.bridge.Calls)
	}
}

func TestHandleSetd_SetNamePersistsAndNotifiesBridge(t *testing.T) {
	h := newHarness(t)

	h.pc.handleSetd(append([]byte{0}, []byte("Bedroom\x00")...))

	h.expectFrame(t, "SETD")

	if h.pc.cfg.Name != "Bedroom" {
		t.Errorf("cfg.Name = %q, want Bedroom", h.pc.cfg.Name)
	}
	found := false
	for _, c := range h.bridge.Calls {
		if c == "SQ_SETNAME(Bedroom)" {
			found = true
		}
	}
	if !found {
		t.Errorf("bridge calls = %v, want SQ_SETNAME(Bedroom)", h.bridge.Calls)
	}

	persisted, err := h.store.Load()
	if err != nil {
		t.Fatalf("store.Load: %v", err)
	}
	if persisted.Name != "Bedroom" {
		t.Errorf("persisted name = %q, want Bedroom", persisted.Name)
	}
}

func TestHandleSetd_TruncatesOverlongName(t *testing.T) {
	h := newHarness(t)
	long := make([]byte, maxNameLen+50)
	for i := range long {
		long[i] = 'x'
	}

	h.pc.handleSetd(append([]byte{0}, append(long, 0)...))
	h.expectFrame(t, "SETD")

	if len(h.pc.cfg.Name) != maxNameLen {
		t.Errorf("cfg.Name length = %d, want %d", len(h.pc.cfg.Name), maxNameLen)
	}
}

func TestHandleSetd_UnhandledIDIsDropped(t *testing.T) {
	h := newHarness(t)
	h.pc.handleSetd([]byte{7, 'x'})
	h.expectNoFrame(t)
}

func TestHandleAudg_AveragesLeftGainWithItself(t *testing.T) {
	// The original's gain-averaging bug is preserved bug-for-bug: avg is
	// (L+L)/2, not (L+R)/2.
	h := newHarness(t)
	payload := make([]byte, 9)
	binary.BigEndian.PutUint32(payload[0:4], 1000) // OldGainL
	binary.BigEndian.PutUint32(payload[4:8], 9999) // OldGainR, must be ignored
	payload[8] = 1                                 // Adjust

	h.pc.handleAudg(payload)

	if len(h.bridge.Calls) != 1 || h.bridge.Calls[0] != "SQ_VOLUME(1000)" {
		t.Errorf("bridge calls = %v, want SQ_VOLUME(1000)", h.bridge.Calls)
	}
}

func TestHandleAudg_NoAdjustSkipsVolumeCall(t *testing.T) {
	h := newHarness(t)
	payload := make([]byte, 9) // Adjust == 0
	h.pc.handleAudg(payload)
	if len(h.bridge.Calls) != 0 {
		t.Errorf("bridge calls = %v, want none", h.bridge.Calls)
	}
}

func TestHandleStrm_Flush(t *testing.T) {
	h := newHarness(t)
	h.stream.Connect(nil, 0, nil, 0, false)
	h.pc.status.MsPlayed = 5000

	h.pc.handleStrm(rawStrmPayload('f', '0', 'p'))

	h.expectFrame(t, "STAT") // STMf
	if h.stream.Snapshot().State != models.StreamStopped {
		t.Errorf("stream snapshot state = %v, want STOPPED after flush", h.stream.Snapshot().State)
	}
	if h.pc.status.MsPlayed != 0 {
		t.Errorf("status.MsPlayed = %d, want 0 after flush", h.pc.status.MsPlayed)
	}
}

func TestHandleStrm_QuitStopsBridgeOnceNotOnRepeat(t *testing.T) {
	h := newHarness(t)

	h.pc.handleStrm(rawStrmPayload('q', '0', 'p'))
	h.expectFrame(t, "STAT")

	h.pc.handleStrm(rawStrmPayload('q', '0', 'p'))
	h.expectFrame(t, "STAT")

	count := 0
	for _, c := range h.bridge.Calls {
		if c == "SQ_STOP" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("SQ_STOP called %d times, want 1 (consecutive q must not repeat it)", count)
	}
}

func TestHandleStrm_PauseAndUnpause(t *testing.T) {
	h := newHarness(t)

	h.pc.handleStrm(rawStrmPayload('p', '0', 'p'))
	h.expectFrame(t, "STAT") // STMp
	if h.output.Snapshot().State != models.OutputWaiting {
		t.Errorf("output state = %v, want WAITING", h.output.Snapshot().State)
	}

	h.pc.handleStrm(rawStrmPayload('u', '0', 'p'))
	h.expectFrame(t, "STAT") // STMr
	if h.output.Snapshot().State != models.OutputRunning {
		t.Errorf("output state = %v, want RUNNING", h.output.Snapshot().State)
	}
}

func TestHandleStrmStart_ResetsLatchesAndNegotiatesPCM(t *testing.T) {
	h := newHarness(t)
	h.pc.latches = models.Latches{SentSTMd: true, SentSTMu: true}

	payload := rawStrmPayload('s', '0', 'p')
	payload[3] = '1' // PCMSampleSize digit -> index 1 -> 16-bit
	payload[4] = '3' // PCMSampleRate digit -> index 3 -> 44100
	payload[5] = '2' // PCMChannels digit (1-based) -> index 1 -> 2 channels

	h.pc.handleStrm(payload)

	h.expectFrame(t, "STAT") // STMf
	h.expectFrame(t, "STAT") // STMc

	if h.pc.latches != (models.Latches{}) {
		t.Errorf("latches = %+v, want reset to zero value", h.pc.latches)
	}
	if h.decoder.OpenCalls != 1 {
		t.Errorf("decoder.OpenCalls = %d, want 1", h.decoder.OpenCalls)
	}
	if h.output.StartCalls != 1 {
		t.Errorf("output.StartCalls = %d, want 1", h.output.StartCalls)
	}
	if len(h.bridge.Calls) == 0 {
		t.Fatal("bridge got no calls, want SQ_SET_TRACK")
	}
}

func TestHandleStrmStart_UnknownFormatWithLowAutostartFails(t *testing.T) {
	h := newHarness(t)
	payload := rawStrmPayload('s', '0', '?') // autostart '0' < 2, format unknown

	h.pc.handleStrm(payload)

	h.expectFrame(t, "STAT") // STMf
	h.expectFrame(t, "STAT") // STMc
	h.expectFrame(t, "STAT") // STMn, since negotiation could not proceed
}

func TestHandleServ_RecordsNewServerAndSyncGroup(t *testing.T) {
	h := newHarness(t)
	payload := make([]byte, 14)
	binary.BigEndian.PutUint32(payload[0:4], 0x0A000001)
	copy(payload[4:], []byte("abcdefghij"))

	h.pc.handleServ(payload)

	if h.pc.newServer != 0x0A000001 {
		t.Errorf("newServer = %#x, want 0x0a000001", h.pc.newServer)
	}
	if h.pc.newServerCap == nil || *h.pc.newServerCap != ",SyncgroupID=abcdefghij" {
		t.Errorf("newServerCap = %v, want ,SyncgroupID=abcdefghij", h.pc.newServerCap)
	}
	found := false
	for _, c := range h.bridge.Calls {
		if c == "SQ_SETSERVER(167772161)" {
			found = true
		}
	}
	if !found {
		t.Errorf("bridge calls = %v, want SQ_SETSERVER", h.bridge.Calls)
	}
}

func TestRunStatusTicker_STMsIsOneShotPerTrack(t *testing.T) {
	h := newHarness(t)
	h.output.SetSnapshot(models.OutputSnapshot{TrackStarted: true})

	h.pc.runStatusTicker()
	h.expectFrame(t, "STAT") // STMs

	if !h.pc.latches.CanSTMdu {
		t.Fatal("CanSTMdu not armed after STMs")
	}

	h.pc.runStatusTicker()
	h.expectNoFrame(t) // must not resend STMs for the same track
}

func TestRunStatusTicker_STMdRequiresCanSTMduAndEligibility(t *testing.T) {
	h := newHarness(t)
	h.decoder.SetSnapshot(models.DecodeSnapshot{State: models.DecodeComplete})
	h.output.SetSnapshot(models.OutputSnapshot{Remote: false}) // local source: always eligible

	// Without CanSTMdu armed yet, STMd must not fire.
	h.pc.runStatusTicker()
	h.expectNoFrame(t)
	if h.pc.latches.SentSTMd {
		t.Fatal("SentSTMd set without CanSTMdu having armed first")
	}

	h.pc.latches.CanSTMdu = true
	h.pc.runStatusTicker()
	h.expectFrame(t, "STAT") // STMd

	if !h.pc.latches.SentSTMd {
		t.Error("SentSTMd not latched after STMd sent")
	}

	// One-shot: must not resend on the next tick.
	h.pc.runStatusTicker()
	h.expectNoFrame(t)
}

func TestRunStatusTicker_DSCOEdgeTriggeredOnce(t *testing.T) {
	h := newHarness(t)
	h.stream.SetSnapshot(models.StreamSnapshot{State: models.StreamDisconnect, Disconnect: models.DisconnectRemoteClose})

	h.pc.runStatusTicker()
	h.expectFrame(t, "DSCO")

	// prevStreamState is now StreamDisconnect too, so a second tick with the
	// same snapshot must not refire.
	h.pc.runStatusTicker()
	h.expectNoFrame(t)
}

func TestRunStatusTicker_EmissionOrder(t *testing.T) {
	// Drive DSCO, STMs, and STMd all in the same tick and confirm they are
	// sent in the fixed order the ticker documents.
	h := newHarness(t)
	h.stream.SetSnapshot(models.StreamSnapshot{State: models.StreamDisconnect, Disconnect: models.DisconnectTimeout})
	h.output.SetSnapshot(models.OutputSnapshot{TrackStarted: true})

	h.pc.runStatusTicker()

	h.expectFrame(t, "DSCO")
	f2 := h.expectFrame(t, "STAT")
	if string(f2.Payload[0:4]) != "STMs" {
		t.Errorf("second frame event = %q, want STMs", f2.Payload[0:4])
	}
}

func TestWakeForRediscovery_ClearsAutoDiscoveredServerOnly(t *testing.T) {
	h := newHarness(t)
	h.pc.cfg.Server = "?"
	h.pc.server = models.ServerBinding{IP: "10.0.0.9", Port: 3483}

	h.pc.WakeForRediscovery()

	if h.pc.server != (models.ServerBinding{}) {
		t.Errorf("server = %+v, want cleared for auto-discovery config", h.pc.server)
	}

	select {
	case <-h.pc.wake:
	default:
		t.Error("wake channel not signaled")
	}
}

func TestWakeForRediscovery_LeavesExplicitServerBinding(t *testing.T) {
	h := newHarness(t)
	h.pc.cfg.Server = "10.0.0.5" // explicit
	h.pc.server = models.ServerBinding{IP: "10.0.0.5", Port: 3483}

	h.pc.WakeForRediscovery()

	if h.pc.server.IP != "10.0.0.5" {
		t.Errorf("server = %+v, want unchanged", h.pc.server)
	}
}

func TestSnapshot_ReflectsLiveNameAndConnectionState(t *testing.T) {
	h := newHarness(t)
	h.pc.cfg.Name = "Office"

	snap := h.pc.Snapshot()

	if snap.Name != "Office" {
		t.Errorf("Snapshot.Name = %q, want Office", snap.Name)
	}
	if !snap.Connected {
		t.Error("Snapshot.Connected = false, want true (conn is set in the harness)")
	}
}

func TestUpdateModeAndCodecs_AppliesBothFields(t *testing.T) {
	h := newHarness(t)
	h.pc.cfg.Mode = "pcm,flc"
	h.pc.cfg.Codecs = "flac,pcm"

	h.pc.UpdateModeAndCodecs("thru", "flac,pcm,mp3")

	if h.pc.cfg.Mode != "thru" {
		t.Errorf("cfg.Mode = %q, want thru", h.pc.cfg.Mode)
	}
	if h.pc.cfg.Codecs != "flac,pcm,mp3" {
		t.Errorf("cfg.Codecs = %q, want flac,pcm,mp3", h.pc.cfg.Codecs)
	}
}

func TestRunStatusTicker_STMuStopsOutputAndClearsFlow(t *testing.T) {
	h := newHarness(t)
	h.pc.latches.CanSTMdu = true
	h.output.SetSnapshot(models.OutputSnapshot{RenderStopped: true, EncodeFlow: true, State: models.OutputRunning})
	h.stream.SetSnapshot(models.StreamSnapshot{State: models.StreamStopped})

	h.pc.runStatusTicker()

	frame := h.expectFrame(t, "STAT")
	if string(frame.Payload[0:4]) != "STMu" {
		t.Errorf("event = %q, want STMu", frame.Payload[0:4])
	}

	snap := h.output.Snapshot()
	if snap.State != models.OutputStopped {
		t.Errorf("output state = %v, want STOPPED after STMu", snap.State)
	}
	if snap.EncodeFlow {
		t.Error("EncodeFlow still set after STMu, want cleared")
	}
	if !h.pc.latches.SentSTMu {
		t.Error("SentSTMu not latched")
	}

	// One-shot: must not resend on the next tick.
	h.pc.runStatusTicker()
	h.expectNoFrame(t)
}

func TestRunStatusTicker_STMoStopsOutputButLeavesFlowFlagSet(t *testing.T) {
	h := newHarness(t)
	h.pc.latches.CanSTMdu = true
	h.output.SetSnapshot(models.OutputSnapshot{RenderStopped: true, EncodeFlow: true, State: models.OutputRunning})
	h.stream.SetSnapshot(models.StreamSnapshot{State: models.StreamHTTP})

	h.pc.runStatusTicker()

	frame := h.expectFrame(t, "STAT")
	if string(frame.Payload[0:4]) != "STMo" {
		t.Errorf("event = %q, want STMo", frame.Payload[0:4])
	}

	snap := h.output.Snapshot()
	if snap.State != models.OutputStopped {
		t.Errorf("output state = %v, want STOPPED after STMo", snap.State)
	}
	if !snap.EncodeFlow {
		t.Error("EncodeFlow cleared after STMo, want left set — only STMu clears flow")
	}
	if !h.pc.latches.SentSTMo {
		t.Error("SentSTMo not latched")
	}
}

func TestRunStatusTicker_STMdWithheldForRemoteTrackFarFromEnd(t *testing.T) {
	h := newHarness(t)
	h.pc.latches.CanSTMdu = true
	h.decoder.SetSnapshot(models.DecodeSnapshot{State: models.DecodeComplete})
	h.output.SetSnapshot(models.OutputSnapshot{Remote: true, EncodeFlow: false, Duration: 60000, MsPlayed: 10000})

	h.pc.runStatusTicker()
	h.expectNoFrame(t)
	if h.pc.latches.SentSTMd {
		t.Error("SentSTMd set despite remote track far from end")
	}
}

func TestRunStatusTicker_STMdAllowedForRemoteTrackNearEnd(t *testing.T) {
	h := newHarness(t)
	h.pc.latches.CanSTMdu = true
	h.decoder.SetSnapshot(models.DecodeSnapshot{State: models.DecodeComplete})
	// 4000ms remaining, under streamDelayMS (5000) — inside the window.
	h.output.SetSnapshot(models.OutputSnapshot{Remote: true, EncodeFlow: false, Duration: 60000, MsPlayed: 56000})

	h.pc.runStatusTicker()

	frame := h.expectFrame(t, "STAT")
	if string(frame.Payload[0:4]) != "STMd" {
		t.Errorf("event = %q, want STMd", frame.Payload[0:4])
	}
	if !h.pc.latches.SentSTMd {
		t.Error("SentSTMd not latched")
	}
}

func TestRunStatusTicker_STMdAllowedForRemoteFlowTrackRegardlessOfProximity(t *testing.T) {
	h := newHarness(t)
	h.pc.latches.CanSTMdu = true
	h.decoder.SetSnapshot(models.DecodeSnapshot{State: models.DecodeComplete})
	h.output.SetSnapshot(models.OutputSnapshot{Remote: true, EncodeFlow: true, Duration: 60000, MsPlayed: 1000})

	h.pc.runStatusTicker()

	frame := h.expectFrame(t, "STAT")
	if string(frame.Payload[0:4]) != "STMd" {
		t.Errorf("event = %q, want STMd", frame.Payload[0:4])
	}
}

func TestRunLoop_IdleTimeoutCausesReturn(t *testing.T) {
	origIdle, origTick := idleTimeout, statusTickInterval
	idleTimeout = 60 * time.Millisecond
	statusTickInterval = 10 * time.Millisecond
	defer func() { idleTimeout = origIdle; statusTickInterval = origTick }()

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.pc.runLoop(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return after idle timeout elapsed with no frames or wakes")
	}
}

func TestRunLoop_WakeResetsIdleTimeoutClock(t *testing.T) {
	origIdle, origTick := idleTimeout, statusTickInterval
	idleTimeout = 80 * time.Millisecond
	statusTickInterval = 10 * time.Millisecond
	defer func() { idleTimeout = origIdle; statusTickInterval = origTick }()

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.pc.runLoop(ctx)
		close(done)
	}()

	// Keep waking well inside idleTimeout, for a span that would have
	// tripped the watchdog had the wake branch not reset lastFrame.
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case <-done:
			cancel()
			t.Fatal("runLoop returned despite being kept alive by repeated wakes")
		default:
		}
		h.pc.wakeUp()
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runLoop did not exit after ctx cancellation")
	}
}

func TestUpdateModeAndCodecs_EmptyFieldLeavesExistingValueUnchanged(t *testing.T) {
	h := newHarness(t)
	h.pc.cfg.Mode = "pcm,flc"
	h.pc.cfg.Codecs = "flac,pcm"

	h.pc.UpdateModeAndCodecs("", "flac,pcm,mp3")

	if h.pc.cfg.Mode != "pcm,flc" {
		t.Errorf("cfg.Mode = %q, want unchanged pcm,flc", h.pc.cfg.Mode)
	}
	if h.pc.cfg.Codecs != "flac,pcm,mp3" {
		t.Errorf("cfg.Codecs = %q, want flac,pcm,mp3", h.pc.cfg.Codecs)
	}
}
