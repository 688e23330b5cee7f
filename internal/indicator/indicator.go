// Package indicator drives a status LED reflecting playback state
// (connecting, streaming, paused, error) on platforms with a GPIO header.
// It is a pure enrichment the controller calls into on state transitions;
// nothing in the wire protocol depends on it.
package indicator

import "github.com/micro-nova/slimproto-go/internal/models"

// Indicator reflects controller/output state transitions on an external
// signal (an LED, in the reference platform).
type Indicator interface {
	SetConnecting()
	SetStreaming()
	SetPaused()
	SetIdle()
	SetError()
	Close() error
}

// NullIndicator discards every transition; it's the default when no GPIO
// is available.
type NullIndicator struct{}

func (NullIndicator) SetConnecting() {}
func (NullIndicator) SetStreaming()  {}
func (NullIndicator) SetPaused()     {}
func (NullIndicator) SetIdle()       {}
func (NullIndicator) SetError()      {}
func (NullIndicator) Close() error   { return nil }

var _ Indicator = NullIndicator{}

// FromOutputState is a convenience mapping the status ticker can use when
// the output state machine transitions, without needing to know about LED
// colors itself.
func FromOutputState(ind Indicator, state models.OutputState) {
	switch state {
	case models.OutputRunning:
		ind.SetStreaming()
	case models.OutputWaiting:
		ind.SetPaused()
	case models.OutputStopped:
		ind.SetIdle()
	}
}
