package collab

import (
	"fmt"
	"net"
	"sync"

	"github.com/micro-nova/slimproto-go/internal/models"
)

// MockStream is an in-memory Stream used by controller tests, grounded on
// the teacher's internal/hardware/mock.go driver-double pattern.
type MockStream struct {
	mu sync.Mutex

	Connected    bool
	ConnectErr   error
	LastIP       net.IP
	LastPort     uint16
	LastHeader   []byte
	LastThresh   uint32
	ConnectCalls int

	snap          models.StreamSnapshot
	PendingHeader []byte
	PendingMeta   []byte
}

func (m *MockStream) Connect(ip net.IP, port uint16, header []byte, threshold uint32, continueOnError bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConnectCalls++
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.Connected = true
	m.LastIP = ip
	m.LastPort = port
	m.LastHeader = header
	m.LastThresh = threshold
	m.snap.State = models.StreamBuffering
	return nil
}

func (m *MockStream) Disconnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Connected {
		return false
	}
	m.Connected = false
	m.snap.State = models.StreamStopped
	return true
}

func (m *MockStream) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = models.StreamSnapshot{}
}

func (m *MockStream) ConsumeHeader() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.PendingHeader
	m.PendingHeader = nil
	return h
}

func (m *MockStream) ConsumeMeta() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	md := m.PendingMeta
	m.PendingMeta = nil
	return md
}

func (m *MockStream) Snapshot() models.StreamSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// SetSnapshot lets a test drive the stream state the status ticker will
// observe without going through Connect/Disconnect.
func (m *MockStream) SetSnapshot(s models.StreamSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = s
}

// MockDecoder is an in-memory Decoder used by controller tests.
type MockDecoder struct {
	mu sync.Mutex

	Codecs  string
	OpenErr error
	OpenCtx struct {
		Codec      byte
		SampleSize uint8
		SampleRate uint32
		Channels   uint8
		Endian     byte
	}
	OpenCalls int
	snap      models.DecodeSnapshot
}

func (m *MockDecoder) Open(codec byte, sampleSize uint8, sampleRate uint32, channels uint8, endian byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenCalls++
	if m.OpenErr != nil {
		return m.OpenErr
	}
	m.OpenCtx.Codec = codec
	m.OpenCtx.SampleSize = sampleSize
	m.OpenCtx.SampleRate = sampleRate
	m.OpenCtx.Channels = channels
	m.OpenCtx.Endian = endian
	m.snap.State = models.DecodeReady
	return nil
}

func (m *MockDecoder) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = models.DecodeSnapshot{}
}

func (m *MockDecoder) SetState(state models.DecodeState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.State = state
}

func (m *MockDecoder) Snapshot() models.DecodeSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *MockDecoder) SetSnapshot(s models.DecodeSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = s
}

func (m *MockDecoder) SupportedCodecs() string {
	if m.Codecs == "" {
		return "flac,pcm,mp3,ogg,aac"
	}
	return m.Codecs
}

// MockOutput is an in-memory Output used by controller tests.
type MockOutput struct {
	mu sync.Mutex

	StartErr   error
	StartCalls int
	ICYCalls   int
	snap       models.OutputSnapshot
}

func (m *MockOutput) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls++
	if m.StartErr != nil {
		return m.StartErr
	}
	m.snap.State = models.OutputRunning
	return nil
}

func (m *MockOutput) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = models.OutputSnapshot{}
}

func (m *MockOutput) SetState(state models.OutputState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.State = state
}

func (m *MockOutput) ClearFlow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.EncodeFlow = false
}

func (m *MockOutput) SetStartAt(jiffies uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.StartAt = jiffies
}

func (m *MockOutput) ResizeBuffer(size uint32) {}

func (m *MockOutput) SetTransition(mode int, periodSecs int, nextReplayGain uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.FadeMode = mode
	m.snap.FadeSecs = periodSecs
	m.snap.NextReplayGain = nextReplayGain
}

func (m *MockOutput) MarkRenderStopped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.RenderStopped = true
}

func (m *MockOutput) SetICY(meta models.TrackMetadata, force bool, nowMS uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ICYCalls++
}

func (m *MockOutput) Snapshot() models.OutputSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *MockOutput) SetSnapshot(s models.OutputSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = s
}

// MockMetadataProvider is an in-memory MetadataProvider for tests.
type MockMetadataProvider struct {
	Metadata models.TrackMetadata
	Err      error
}

func (m *MockMetadataProvider) GetMetadata(offset int) (models.TrackMetadata, error) {
	if m.Err != nil {
		return models.TrackMetadata{}, m.Err
	}
	return m.Metadata, nil
}

func (m *MockMetadataProvider) DefaultMetadata(flow bool) models.TrackMetadata {
	return models.TrackMetadata{Remote: flow, Title: "Unknown"}
}

// MockBridge records every callback invocation for assertion in tests.
type MockBridge struct {
	mu      sync.Mutex
	Calls   []string
	TrackOK bool
}

func (m *MockBridge) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

func (m *MockBridge) Stop()               { m.record(ActionStop.String()) }
func (m *MockBridge) Pause()              { m.record(ActionPause.String()) }
func (m *MockBridge) Unpause()            { m.record(ActionUnpause.String()) }
func (m *MockBridge) OnOff(on bool)       { m.record(fmt.Sprintf("%s(%v)", ActionOnOff, on)) }
func (m *MockBridge) Volume(gain uint16)  { m.record(fmt.Sprintf("%s(%d)", ActionVolume, gain)) }
func (m *MockBridge) SetName(name string) { m.record(fmt.Sprintf("%s(%s)", ActionSetName, name)) }
func (m *MockBridge) SetServer(serverIP uint32) {
	m.record(fmt.Sprintf("%s(%d)", ActionSetServer, serverIP))
}
func (m *MockBridge) Play() { m.record(ActionPlay.String()) }
func (m *MockBridge) SetTrack(track models.TrackOpen) bool {
	m.record(fmt.Sprintf("%s(%s)", ActionSetTrack, track.URI))
	if m.TrackOK {
		return true
	}
	return m.TrackOK
}
