// Package collab declares the external collaborator interfaces the
// controller depends on but does not implement: the HTTP/ICY stream
// reader, the codec decoder, the output renderer, the metadata provider,
// the mime-type registry, and the upstream bridge. spec.md §1 calls all of
// these out of scope for the controller itself; this package is the seam
// between the controller and whatever concretely implements them.
package collab

import (
	"net"

	"github.com/micro-nova/slimproto-go/internal/config"
	"github.com/micro-nova/slimproto-go/internal/models"
)

// Stream is the HTTP/ICY stream reader collaborator.
type Stream interface {
	// Connect opens the HTTP stream (stream_sock). header is the raw HTTP
	// request header bytes to send; threshold is in bytes.
	Connect(ip net.IP, port uint16, header []byte, threshold uint32, continueOnError bool) error

	// Disconnect is idempotent; it reports true if it actually closed
	// something (stream_disconnect).
	Disconnect() bool

	// Flush resets the stream buffer (buf_flush(streambuf)).
	Flush()

	// ConsumeHeader returns the pending HTTP response header and clears
	// the pending flag in one atomic step, or nil if none is pending.
	ConsumeHeader() []byte

	// ConsumeMeta returns pending ICY metadata bytes read from the source
	// stream and clears the pending flag, or nil if none is pending.
	ConsumeMeta() []byte

	// Snapshot returns a copy of the current stream state for the status
	// ticker to sample under the stream lock.
	Snapshot() models.StreamSnapshot
}

// Decoder is the codec decoder collaborator.
type Decoder interface {
	// Open opens a decoder instance for the given source format
	// (codec_open).
	Open(codec byte, sampleSize uint8, sampleRate uint32, channels uint8, endian byte) error

	// Flush resets decoder state (decode_flush).
	Flush()

	// SetState transitions the decoder's lifecycle state; used by the
	// controller to move READY->RUNNING on autostart and COMPLETE/ERROR->
	// STOPPED once a track has been fully handled.
	SetState(state models.DecodeState)

	// Snapshot returns the decoder's current lifecycle state.
	Snapshot() models.DecodeSnapshot

	// SupportedCodecs reports the comma-separated codec list this decoder
	// actually has backends for, used to filter the configured codec list
	// before it is advertised in fixed_cap at HELO time.
	SupportedCodecs() string
}

// Output is the output renderer collaborator.
type Output interface {
	// Start begins rendering (output_start).
	Start() error

	// Flush resets output state (output_flush).
	Flush()

	// SetState transitions the output state machine (e.g. on `strm p`/`u`).
	SetState(state models.OutputState)

	// ClearFlow turns off flow-mode encoding once a track has underrun to
	// completion (spec.md §4.6: STMu "moves output to STOPPED and clears
	// flow flag").
	ClearFlow()

	// SetStartAt records the jiffies timestamp an unpause should resume at.
	SetStartAt(jiffies uint32)

	// ResizeBuffer resizes the output ring buffer (_buf_resize(outputbuf)).
	ResizeBuffer(size uint32)

	// SetICY pushes (or refreshes) ICY metadata to the renderer
	// (output_set_icy).
	SetICY(meta models.TrackMetadata, force bool, nowMS uint32)

	// SetTransition forwards the fade/transition fields parsed from
	// `strm s` (transition_period, transition_type, next_replay_gain) to
	// the renderer; applying them is the renderer's job, not the
	// controller's (SPEC_FULL §4 item 6).
	SetTransition(mode int, periodSecs int, nextReplayGain uint32)

	// MarkRenderStopped forces render.state to STOPPED, used by the status
	// ticker's stream-failure path (spec.md §7: "unblock by marking
	// decode/render stopped and canSTMdu=true").
	MarkRenderStopped()

	// Snapshot returns a copy of the current output/render state for the
	// status ticker to sample under the output lock.
	Snapshot() models.OutputSnapshot
}

// MetadataProvider is the sq_get_metadata / sq_default_metadata
// collaborator.
type MetadataProvider interface {
	// GetMetadata returns metadata for the track at the given offset from
	// the currently rendering track (negative/positive skip).
	GetMetadata(offset int) (models.TrackMetadata, error)

	// DefaultMetadata synthesizes placeholder metadata, used when flow
	// mode needs ICY data before any real track metadata is known.
	DefaultMetadata(flow bool) models.TrackMetadata
}

// MimeRegistry is the mime-type registry collaborator: find_mimetype,
// find_pcm_mimetype, mimetype2format, mimetype2ext.
type MimeRegistry interface {
	FindMimeType(codec byte, rawFormatHint string) (string, error)
	FindPCMMimeType(sampleSize *uint8, truncL24PCM bool, sampleRate uint32, channels uint8, rawFormat config.RawAudioFormat) (string, error)
	Mimetype2Format(mimeType string) byte
	Mimetype2Ext(mimeType string) string
}

// BridgeAction identifies which callback action the controller is
// invoking on the upstream bridge, mirroring the C sq_action_t enum
// (SQ_STOP, SQ_PAUSE, ...). Exposed so internal/events can render a
// human-readable BridgeEvent without duplicating the action list.
type BridgeAction int

const (
	ActionStop BridgeAction = iota
	ActionPause
	ActionUnpause
	ActionOnOff
	ActionVolume
	ActionSetName
	ActionSetServer
	ActionPlay
	ActionSetTrack
)

func (a BridgeAction) String() string {
	switch a {
	case ActionStop:
		return "SQ_STOP"
	case ActionPause:
		return "SQ_PAUSE"
	case ActionUnpause:
		return "SQ_UNPAUSE"
	case ActionOnOff:
		return "SQ_ONOFF"
	case ActionVolume:
		return "SQ_VOLUME"
	case ActionSetName:
		return "SQ_SETNAME"
	case ActionSetServer:
		return "SQ_SETSERVER"
	case ActionPlay:
		return "SQ_PLAY"
	case ActionSetTrack:
		return "SQ_SET_TRACK"
	default:
		return "SQ_UNKNOWN"
	}
}

// Bridge is the upstream callback collaborator that exposes the decoded
// audio as an HTTP URL to the real hardware player.
type Bridge interface {
	Stop()
	Pause()
	Unpause()
	OnOff(on bool)
	Volume(gain uint16)
	SetName(name string)
	SetServer(serverIP uint32)
	Play()
	// SetTrack publishes the bridge URL + mime-type for a newly opened
	// track (SQ_SET_TRACK); returns false if the bridge rejected it.
	SetTrack(track models.TrackOpen) bool
}
