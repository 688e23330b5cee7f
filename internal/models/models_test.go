package models_test

import (
	"testing"

	"github.com/micro-nova/slimproto-go/internal/models"
)

func TestNewCapabilities_ConcatenatesBaseAndFixed(t *testing.T) {
	caps := models.NewCapabilities(384000, "flac,pcm,mp3")
	if caps.Base == "" {
		t.Error("Base capability string is empty")
	}
	want := ",MaxSampleRate=384000,flac,pcm,mp3"
	if caps.Fixed != want {
		t.Errorf("Fixed = %q, want %q", caps.Fixed, want)
	}
	if caps.Variable != "" {
		t.Errorf("Variable = %q, want empty for a fresh Capabilities", caps.Variable)
	}
}

func TestFormatFixedCap_ZeroSampleRate(t *testing.T) {
	got := models.FormatFixedCap(0, "pcm")
	want := ",MaxSampleRate=0,pcm"
	if got != want {
		t.Errorf("FormatFixedCap(0, pcm) = %q, want %q", got, want)
	}
}

func TestLatches_ResetClearsAllFields(t *testing.T) {
	l := models.Latches{CanSTMdu: true, SentSTMu: true, SentSTMo: true, SentSTMl: true, SentSTMd: true}
	l.Reset()
	if l != (models.Latches{}) {
		t.Errorf("Latches after Reset = %+v, want zero value", l)
	}
}

func TestStreamState_String(t *testing.T) {
	cases := map[models.StreamState]string{
		models.StreamStopped:    "STOPPED",
		models.StreamWait:       "STREAMING_WAIT",
		models.StreamBuffering:  "STREAMING_BUFFERING",
		models.StreamHTTP:       "STREAMING_HTTP",
		models.StreamFile:       "STREAMING_FILE",
		models.StreamDisconnect: "DISCONNECT",
		models.StreamState(99):  "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("StreamState(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestDecodeState_String(t *testing.T) {
	cases := map[models.DecodeState]string{
		models.DecodeStopped:  "STOPPED",
		models.DecodeReady:    "READY",
		models.DecodeRunning:  "RUNNING",
		models.DecodeComplete: "COMPLETE",
		models.DecodeError:    "ERROR",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("DecodeState(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestOutputState_String(t *testing.T) {
	cases := map[models.OutputState]string{
		models.OutputStopped: "STOPPED",
		models.OutputWaiting: "WAITING",
		models.OutputRunning: "RUNNING",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("OutputState(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestEncodeMode_String(t *testing.T) {
	cases := map[models.EncodeMode]string{
		models.EncodePCM:  "pcm",
		models.EncodeFLAC: "flc",
		models.EncodeMP3:  "mp3",
		models.EncodeThru: "thru",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("EncodeMode(%d).String() = %q, want %q", mode, got, want)
		}
	}
}
