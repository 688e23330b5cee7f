// Package config handles the SlimProto player's configuration surface and
// its persisted (discovered server, assigned name) state, modeled on the
// teacher's config.Store/JSONStore split.
package config

// RawAudioFormat is a bitmask of raw-PCM container preferences.
type RawAudioFormat int

const (
	RawAudioNone RawAudioFormat = 0
	RawAudioWAV  RawAudioFormat = 1 << 0
	RawAudioAIFF RawAudioFormat = 1 << 1
)

func (f RawAudioFormat) Has(bit RawAudioFormat) bool { return f&bit != 0 }

// L24Format selects how 24-bit PCM is handled.
type L24Format int

const (
	L24PassThrough L24Format = iota
	L24Trunc16
	L24Trunc16PCM
)

// Config is the full configuration surface enumerated in spec.md §6.
type Config struct {
	// Server is an explicit "ip[:port]" address, or "?" for auto-discovery.
	Server string

	// Mode is one of pcm|flc|mp3|thru, optionally suffixed "flow", plus
	// modifiers r:<rate> s:<size> flac:<level> mp3:<bitrate>.
	Mode string

	SampleRate     uint32
	Codecs         string
	MAC            [6]byte
	SendICY        bool
	RawAudioFormat RawAudioFormat
	L24Format      L24Format
	OutputBufSize  uint32
	StreamLength   uint32
	Name           string

	// BridgeHost/BridgePort/BridgePath are where the controller publishes
	// the decoded-audio bridge URL for the upstream bridge collaborator:
	// http://<BridgeHost>:<BridgePort><BridgePath><index>.<ext>
	BridgeHost string
	BridgePort uint16
	BridgePath string
}

// DefaultConfig returns the configuration squeezelite itself defaults to.
func DefaultConfig() Config {
	return Config{
		Server:         "?",
		Mode:           "pcm,flc,mp3,thru",
		SampleRate:     384000,
		Codecs:         "flac,pcm,mp3,ogg,aac",
		SendICY:        true,
		RawAudioFormat: RawAudioWAV,
		L24Format:      L24PassThrough,
		OutputBufSize:  2 * 1024 * 1024,
		StreamLength:   0,
		Name:           "SqueezeLite",
		BridgeHost:     "127.0.0.1",
		BridgePort:     9000,
		BridgePath:     "/bridge/",
	}
}

// PersistedState is the small amount of state worth remembering across
// restarts: the name the user assigned via `setd`, and the server we were
// last bound to. The stored server is reused only when Server is "?", so an
// auto-discovery restart connects without re-running discovery first.
type PersistedState struct {
	Name           string `json:"name"`
	LastServerIP   string `json:"last_server_ip"`
	LastServerPort uint16 `json:"last_server_port"`
}

// Store persists PersistedState across restarts.
type Store interface {
	Load() (*PersistedState, error)
	Save(state *PersistedState) error
	Path() string
	Flush() error
}
