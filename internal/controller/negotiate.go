package controller

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/micro-nova/slimproto-go/internal/config"
	"github.com/micro-nova/slimproto-go/internal/models"
	"github.com/micro-nova/slimproto-go/internal/wire"
)

// formatFields is the subset of a `strm s` or `codc` packet the format
// negotiator needs, shared between the two call sites.
type formatFields struct {
	Format        byte
	SampleSizeIdx byte
	SampleRateIdx byte
	ChannelsIdx   byte
	Endianness    byte
}

// processMode is the parsed form of config.Mode: the base codec, whether
// flow mode was requested, and any r:/s:/flac:/mp3: modifiers.
type processMode struct {
	base       string
	flow       bool
	rate       int // explicit r:<rate>; 0 if absent; negative means "cap"
	size       int // explicit s:<size>; 0 if absent
	flacLevel  int
	mp3Bitrate int
}

// parseProcessMode parses spec.md §4.7's mode string grammar:
// "pcm|flc|mp3|thru", optionally suffixed "flow", plus r:/s:/flac:/mp3:
// modifiers, comma or space separated.
func parseProcessMode(mode string) processMode {
	pm := processMode{}
	for _, tok := range strings.FieldsFunc(mode, func(r rune) bool { return r == ',' || r == ' ' }) {
		switch {
		case tok == "pcm" || tok == "flc" || tok == "mp3" || tok == "thru":
			pm.base = tok
		case tok == "flow":
			pm.flow = true
		case strings.HasPrefix(tok, "r:"):
			pm.rate, _ = strconv.Atoi(tok[2:])
		case strings.HasPrefix(tok, "s:"):
			pm.size, _ = strconv.Atoi(tok[2:])
		case strings.HasPrefix(tok, "flac:"):
			pm.flacLevel, _ = strconv.Atoi(tok[5:])
		case strings.HasPrefix(tok, "mp3:"):
			pm.mp3Bitrate, _ = strconv.Atoi(tok[4:])
		}
	}
	return pm
}

// negotiateFormat implements process_start (spec.md §4.7): resolve the
// wire-coded format/rate/size/channels into a concrete decoder open call
// and output mime-type, then publish the bridge URL. Returns false on any
// failure, in which case the caller sends STMn.
func (pc *PlayerContext) negotiateFormat(f formatFields, autostart byte) bool {
	pc.mu.Lock()
	pc.outIndex++
	index := pc.outIndex
	offset := 0
	if pc.renderIndex != 0 {
		offset = int(index) - int(pc.renderIndex)
	}
	flowActive := pc.output.Snapshot().EncodeFlow
	cfg := pc.cfg
	pc.mu.Unlock()

	pc.output.ResizeBuffer(cfg.OutputBufSize)

	meta, err := pc.metadata.GetMetadata(offset)
	if err != nil {
		slog.Debug("controller: metadata lookup failed, using defaults", "err", err)
		meta = pc.metadata.DefaultMetadata(false)
	}

	sourceSize := wire.SampleSizeFromIndex(wire.DecodeDigitIndex(f.SampleSizeIdx))
	sourceRate := wire.SampleRateFromIndex(wire.DecodeDigitIndex(f.SampleRateIdx))
	sourceChannels := wire.ChannelsFromIndex(wire.DecodeChannelDigit(f.ChannelsIdx))
	if sourceRate > cfg.SampleRate && cfg.SampleRate != 0 {
		sourceRate = cfg.SampleRate
	}

	if flowActive {
		if err := pc.decoder.Open(f.Format, sourceSize, sourceRate, sourceChannels, f.Endianness); err != nil {
			slog.Warn("controller: codec_open failed in flow mode", "err", err)
			return false
		}
		return true
	}

	pm := parseProcessMode(cfg.Mode)

	encodeMode := models.EncodePCM
	switch pm.base {
	case "flc":
		encodeMode = models.EncodeFLAC
	case "mp3":
		encodeMode = models.EncodeMP3
	case "thru":
		encodeMode = models.EncodeThru
		pm.flow = false // thru forces flow off even if requested
	}

	encodeRate := sourceRate
	encodeSize := sourceSize
	channels := sourceChannels
	if pm.flow {
		encodeRate, encodeSize, channels = 44100, 16, 2
		meta = pc.metadata.DefaultMetadata(true)
	}
	switch {
	case pm.rate > 0:
		encodeRate = uint32(pm.rate)
	case pm.rate < 0 && uint32(-pm.rate) < sourceRate:
		encodeRate = uint32(-pm.rate)
	}
	if pm.size > 0 {
		encodeSize = uint8(pm.size)
	}

	mimeType, out, ext, err := pc.resolveMimeType(encodeMode, f.Format, &encodeSize, encodeRate, channels, cfg)
	if err != nil {
		slog.Warn("controller: mime-type resolution failed", "err", err)
		return false
	}

	if err := pc.decoder.Open(f.Format, sourceSize, sourceRate, sourceChannels, f.Endianness); err != nil {
		slog.Warn("controller: codec_open failed", "err", err)
		return false
	}
	if err := pc.output.Start(); err != nil {
		slog.Warn("controller: output_start failed", "err", err)
		return false
	}

	pc.output.SetICY(meta, true, jiffies())

	url := fmt.Sprintf("http://%s:%d%s%d.%s", cfg.BridgeHost, cfg.BridgePort, cfg.BridgePath, index, ext)
	if !pc.bridge.SetTrack(models.TrackOpen{MimeType: mimeType, URI: url}) {
		slog.Warn("controller: bridge rejected track", "url", url)
		return false
	}

	_ = out
	pc.mu.Lock()
	pc.renderIndex = index
	pc.mu.Unlock()
	return true
}

// resolveMimeType picks a mime-type per spec.md §4.7 step 9: for `thru`
// the mime-type follows the source codec (with FLAC's 'f' becoming the
// container-matched 'c'), otherwise it's keyed on the desired encode mode.
func (pc *PlayerContext) resolveMimeType(mode models.EncodeMode, sourceCodec byte, size *uint8, rate uint32, channels uint8, cfg config.Config) (mimeType string, outCodec byte, ext string, err error) {
	codec := sourceCodec
	if mode != models.EncodeThru {
		switch mode {
		case models.EncodeFLAC:
			codec = 'f'
		case models.EncodeMP3:
			codec = 'm'
		case models.EncodePCM:
			codec = 'p'
		}
	}
	if codec == 'f' && mode == models.EncodeThru {
		codec = 'c' // container-matched FLAC
	}

	if codec == 'p' {
		mimeType, err = pc.mime.FindPCMMimeType(size, cfg.L24Format == config.L24Trunc16PCM, rate, channels, cfg.RawAudioFormat)
	} else {
		rawHint := ""
		if cfg.RawAudioFormat.Has(config.RawAudioWAV) {
			rawHint = "wav"
		} else if cfg.RawAudioFormat.Has(config.RawAudioAIFF) {
			rawHint = "aif"
		}
		mimeType, err = pc.mime.FindMimeType(codec, rawHint)
	}
	if err != nil {
		return "", 0, "", err
	}
	outCodec = pc.mime.Mimetype2Format(mimeType)
	ext = pc.mime.Mimetype2Ext(mimeType)
	return mimeType, outCodec, ext, nil
}
