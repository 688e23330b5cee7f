// Package wire implements the SlimProto binary frame codec: the
// length-prefixed read side (receive pump), the self-describing-length
// write side (HELO/STAT/DSCO/RESP/META/SETD), and the per-opcode struct
// decoders (strm/cont/codc/aude/audg/setd/serv/vers). All multi-byte
// numeric fields are big-endian except STAT's server_timestamp, which is
// echoed back verbatim in whatever byte order the server sent it.
package wire

import "github.com/micro-nova/slimproto-go/internal/models"

// MaxFrameSize is the largest control-channel frame this codec will accept;
// anything larger is a fatal, connection-ending condition (spec.md §4.4).
const MaxFrameSize = 4096

// PCMSampleSizes indexes the `pcm_sample_size` digit ('0'-'3') to a bit depth.
var PCMSampleSizes = [4]uint8{8, 16, 24, 32}

// PCMSampleRates indexes the `pcm_sample_rate` byte, read as its offset from
// ASCII '0' ('0'-'9' for 0-9, then ':' through '>' for 10-14), to Hz.
var PCMSampleRates = [15]uint32{
	11025, 22050, 32000, 44100, 48000,
	8000, 12000, 16000, 24000, 96000,
	88200, 176400, 192000, 352800, 384000,
}

// PCMChannels indexes the `pcm_channels` digit ('1'-'2') to a channel count.
var PCMChannels = [2]uint8{1, 2}

// DecodeDigitIndex converts a wire digit byte ('0'-'9') or '?' into a table
// index, using models.UnknownIndex for '?'.
func DecodeDigitIndex(b byte) byte {
	if b == '?' {
		return models.UnknownIndex
	}
	return b - '0'
}

// SampleSizeFromIndex resolves a decoded index to a bit depth, 0 if unknown
// or out of range.
func SampleSizeFromIndex(idx byte) uint8 {
	if idx == models.UnknownIndex || int(idx) >= len(PCMSampleSizes) {
		return 0
	}
	return PCMSampleSizes[idx]
}

// SampleRateFromIndex resolves a decoded index to a sample rate in Hz.
func SampleRateFromIndex(idx byte) uint32 {
	if idx == models.UnknownIndex || int(idx) >= len(PCMSampleRates) {
		return 0
	}
	return PCMSampleRates[idx]
}

// ChannelsFromIndex resolves a decoded channel-count index.
func ChannelsFromIndex(idx byte) uint8 {
	if idx == models.UnknownIndex || int(idx) >= len(PCMChannels) {
		return 0
	}
	return PCMChannels[idx]
}

// DecodeChannelDigit converts the wire channel digit ('1' or '2') into a
// table index, using models.UnknownIndex for '?'. Unlike the other digit
// fields, channels are 1-based on the wire.
func DecodeChannelDigit(b byte) byte {
	if b == '?' {
		return models.UnknownIndex
	}
	return b - '1'
}
