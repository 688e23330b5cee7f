// Package mimetype implements the small mime-type registry the format
// negotiator consults: find_mimetype / find_pcm_mimetype / mimetype2format
// / mimetype2ext from spec.md §6.
package mimetype

import (
	"fmt"
	"strings"

	"github.com/micro-nova/slimproto-go/internal/config"
)

// entry is one codec's registered mime-type and matching metadata.
type entry struct {
	codec    byte
	mimetype string
	format   byte // SlimProto format byte this mime-type maps back to
	ext      string
}

var registry = []entry{
	{codec: 'f', mimetype: "audio/flac", format: 'f', ext: "flac"},
	{codec: 'm', mimetype: "audio/mpeg", format: 'm', ext: "mp3"},
	{codec: 'a', mimetype: "audio/aac", format: 'a', ext: "aac"},
	{codec: 'o', mimetype: "audio/ogg", format: 'o', ext: "ogg"},
	{codec: 'c', mimetype: "audio/flac", format: 'c', ext: "flac"}, // container-matched FLAC
}

// FindMimeType returns the mime-type registered for a non-PCM codec byte.
// For codec 'p' (raw PCM) it falls back to FindPCMMimeType with CD-quality
// defaults and no raw-container preference; callers negotiating an actual
// PCM stream should call FindPCMMimeType directly with the negotiated
// sample size/rate/channels instead.
func FindMimeType(codec byte, rawFormatHint string) (string, error) {
	for _, e := range registry {
		if e.codec == codec {
			return e.mimetype, nil
		}
	}
	if codec == 'p' {
		size := uint8(16)
		return FindPCMMimeType(&size, false, 44100, 2, config.RawAudioNone)
	}
	return "", fmt.Errorf("mimetype: no mime-type registered for codec %q", string(codec))
}

// FindPCMMimeType builds a PCM mime-type string of the form
// "audio/L<size>;rate=<rate>;channels=<channels>", or a raw container
// (audio/wav, audio/x-aiff) when rawFormat requests one. truncL24PCM
// requests that 24-bit samples be reported (and expected) as 16-bit over
// the wire, matching config.L24Trunc16PCM.
func FindPCMMimeType(sampleSize *uint8, truncL24PCM bool, sampleRate uint32, channels uint8, rawFormat config.RawAudioFormat) (string, error) {
	size := sampleSize
	if size == nil {
		return "", fmt.Errorf("mimetype: nil sample size")
	}
	if *size == 24 && truncL24PCM {
		*size = 16
	}

	if rawFormat.Has(config.RawAudioWAV) {
		return "audio/wav", nil
	}
	if rawFormat.Has(config.RawAudioAIFF) {
		return "audio/x-aiff", nil
	}

	return fmt.Sprintf("audio/L%d;rate=%d;channels=%d", *size, sampleRate, channels), nil
}

// Mimetype2Format maps a resolved mime-type string back to a SlimProto
// format byte, used to decide the eventual bridge-URL extension and
// out-codec byte.
func Mimetype2Format(m string) byte {
	switch {
	case strings.HasPrefix(m, "audio/flac"):
		return 'f'
	case strings.HasPrefix(m, "audio/mpeg"):
		return 'm'
	case strings.HasPrefix(m, "audio/aac"):
		return 'a'
	case strings.HasPrefix(m, "audio/ogg"):
		return 'o'
	case strings.HasPrefix(m, "audio/wav"):
		return 'w'
	case strings.HasPrefix(m, "audio/x-aiff"):
		return 'i'
	case strings.HasPrefix(m, "audio/L"):
		return 'p'
	default:
		return '*'
	}
}

// Registry is the default collab.MimeRegistry implementation, backed by
// the package-level lookup tables above.
type Registry struct{}

func (Registry) FindMimeType(codec byte, rawFormatHint string) (string, error) {
	return FindMimeType(codec, rawFormatHint)
}

func (Registry) FindPCMMimeType(sampleSize *uint8, truncL24PCM bool, sampleRate uint32, channels uint8, rawFormat config.RawAudioFormat) (string, error) {
	return FindPCMMimeType(sampleSize, truncL24PCM, sampleRate, channels, rawFormat)
}

func (Registry) Mimetype2Format(m string) byte { return Mimetype2Format(m) }
func (Registry) Mimetype2Ext(m string) string  { return Mimetype2Ext(m) }

// Mimetype2Ext maps a resolved mime-type string to a bridge-URL file
// extension.
func Mimetype2Ext(m string) string {
	switch {
	case strings.HasPrefix(m, "audio/flac"):
		return "flac"
	case strings.HasPrefix(m, "audio/mpeg"):
		return "mp3"
	case strings.HasPrefix(m, "audio/aac"):
		return "aac"
	case strings.HasPrefix(m, "audio/ogg"):
		return "ogg"
	case strings.HasPrefix(m, "audio/wav"):
		return "wav"
	case strings.HasPrefix(m, "audio/x-aiff"):
		return "aif"
	case strings.HasPrefix(m, "audio/L"):
		return "pcm"
	default:
		return "bin"
	}
}
