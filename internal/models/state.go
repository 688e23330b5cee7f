// Package models holds the pure data types shared across the SlimProto
// client controller: playback state enums, point-in-time snapshots handed
// to the status ticker, and the player's capability/configuration surface.
// Nothing in this package owns a lock or a socket — those belong to
// internal/controller. Types here are copied by value across goroutine
// boundaries so a stale read never aliases live state.
package models

import "time"

// StreamState mirrors the stream reader's state machine. It is owned by the
// external stream collaborator (internal/collab.Stream) and is read-only
// from the controller's point of view.
type StreamState int

const (
	StreamStopped StreamState = iota
	StreamWait
	StreamBuffering
	StreamHTTP
	StreamFile
	StreamDisconnect
)

func (s StreamState) String() string {
	switch s {
	case StreamStopped:
		return "STOPPED"
	case StreamWait:
		return "STREAMING_WAIT"
	case StreamBuffering:
		return "STREAMING_BUFFERING"
	case StreamHTTP:
		return "STREAMING_HTTP"
	case StreamFile:
		return "STREAMING_FILE"
	case StreamDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// DisconnectCode is carried in a DSCO frame's reason byte.
type DisconnectCode byte

const (
	DisconnectOK          DisconnectCode = 0
	DisconnectLocalClose  DisconnectCode = 1
	DisconnectRemoteClose DisconnectCode = 2
	DisconnectUnreachable DisconnectCode = 3
	DisconnectTimeout     DisconnectCode = 4
)

// DecodeState mirrors the decoder's lifecycle. Transitioned to Running by
// the controller on autostart, and by the decoder collaborator thereafter.
type DecodeState int

const (
	DecodeStopped DecodeState = iota
	DecodeReady
	DecodeRunning
	DecodeComplete
	DecodeError
)

func (d DecodeState) String() string {
	switch d {
	case DecodeStopped:
		return "STOPPED"
	case DecodeReady:
		return "READY"
	case DecodeRunning:
		return "RUNNING"
	case DecodeComplete:
		return "COMPLETE"
	case DecodeError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// OutputState mirrors the output renderer's lifecycle.
type OutputState int

const (
	OutputStopped OutputState = iota
	OutputWaiting             // paused
	OutputRunning
)

func (o OutputState) String() string {
	switch o {
	case OutputStopped:
		return "STOPPED"
	case OutputWaiting:
		return "WAITING"
	case OutputRunning:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// StreamSnapshot is the read-only view of stream-reader state the status
// ticker samples under the stream lock, then releases before any send.
// Pending HTTP response headers and ICY metadata are fetched separately,
// via Stream.ConsumeHeader/ConsumeMeta, rather than copied in here — both
// need an atomic fetch-and-clear the ticker can't safely do from a value
// snapshot alone.
type StreamSnapshot struct {
	State        StreamState
	Bytes        uint64
	Disconnect   DisconnectCode
	MetaInterval uint32
}

// DecodeSnapshot is the read-only view of decoder state.
type DecodeSnapshot struct {
	State DecodeState
}

// OutputSnapshot is the read-only view of output/render state. It also
// carries the fade/transition fields parsed from `strm s` (§SPEC_FULL.md
// "supplemented features", item 6) even though applying them is the
// out-of-scope output renderer's job, not the controller's.
type OutputSnapshot struct {
	State          OutputState
	TrackStarted   bool
	Completed      bool
	Remote         bool
	EncodeFlow     bool
	SampleRate     uint32
	Duration       uint32 // ms, 0 = unknown/live
	MsPlayed       uint32
	StartAt        uint32
	NextReplayGain uint32
	FadeMode       int
	FadeSecs       int
	RenderStopped  bool
}

// Status is the aggregated, server-facing snapshot built once per ticker
// pass from the three sub-snapshots above. It is what sendSTAT reads.
type Status struct {
	StreamFull  uint32
	StreamSize  uint32
	StreamBytes uint64
	OutputSize  uint32
	OutputFull  uint32
	SampleRate  uint32
	OutputReady bool
	Duration    uint32
	MsPlayed    uint32
	LastSTMt    time.Time
}

// PlayerSnapshot is the read-only view of a running controller exposed to
// the debug HTTP surface: identity, current server binding, and the three
// collaborator lifecycle states, aggregated in one place so internal/api
// never has to reach into internal/controller's locked fields directly.
type PlayerSnapshot struct {
	Identity      Identity      `json:"identity"`
	Server        ServerBinding `json:"server"`
	Name          string        `json:"name"`
	Connected     bool          `json:"connected"`
	Reconnect     bool          `json:"reconnect"`
	StreamState   StreamState   `json:"stream_state"`
	DecodeState   DecodeState   `json:"decode_state"`
	OutputState   OutputState   `json:"output_state"`
	BytesReceived uint64        `json:"bytes_received"`
}

// Latches are the one-shot flags that enforce STMs-before-STMd/STMu/STMo
// ordering for a single track. Reset on every `strm s`. There is no
// separate SentSTMs latch: CanSTMdu itself only ever arms once per track
// (the instant output.track_started fires), so gating the STMs send on
// "!CanSTMdu && track_started" already makes STMs a one-shot.
type Latches struct {
	CanSTMdu bool
	SentSTMu bool
	SentSTMo bool
	SentSTMl bool
	SentSTMd bool
}

// Reset clears all latches for a new stream, per spec.md invariant: "For
// each stream, the set of one-shot latches is reset on every strm s."
func (l *Latches) Reset() {
	*l = Latches{}
}

// Capabilities holds the three capability-string fragments concatenated
// into every HELO payload: a fixed base string, the player's fixed
// capability (sample rate + codec list, rebuilt from the current config for
// each HELO), and a per-session
// variable capability (e.g. a sync-group id carried across a server switch).
type Capabilities struct {
	Base     string
	Fixed    string
	Variable string
}

const baseCapabilities = "Model=squeezelite,ModelName=SqueezeLite,AccuratePlayPoints=0,HasDigitalOut=1"

// NewCapabilities builds the base+fixed capability pair from the player's
// configured sample rate cap and codec list. Variable starts empty; it is
// populated per-session by the `serv` handler and consumed on the next HELO.
func NewCapabilities(sampleRate uint32, codecs string) Capabilities {
	return Capabilities{
		Base:  baseCapabilities,
		Fixed: FormatFixedCap(sampleRate, codecs),
	}
}

// FormatFixedCap renders the ",MaxSampleRate=<rate>,<codecs>" fragment.
func FormatFixedCap(sampleRate uint32, codecs string) string {
	return ",MaxSampleRate=" + itoa(sampleRate) + "," + codecs
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
