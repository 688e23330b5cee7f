//go:build linux

package indicator

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIOIndicator drives a single status LED on a BCM GPIO pin, grounded on
// the teacher's periph.io reset-pin driver (internal/hardware/gpio_reset.go).
// Connecting/error blink states are approximated with steady levels since
// this package owns no ticker of its own; callers that want blinking
// should toggle SetError/SetConnecting from their own timer.
type GPIOIndicator struct {
	mu  sync.Mutex
	pin gpio.PinIO
}

// NewGPIOIndicator opens pinName (BCM GPIO naming, e.g. "GPIO6") as an
// output and returns an Indicator driving it.
func NewGPIOIndicator(pinName string) (*GPIOIndicator, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("indicator: gpio host init: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("indicator: failed to open pin %s", pinName)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("indicator: failed to init pin %s: %w", pinName, err)
	}
	return &GPIOIndicator{pin: pin}, nil
}

func (g *GPIOIndicator) set(level gpio.Level) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_ = g.pin.Out(level)
}

func (g *GPIOIndicator) SetConnecting() { g.set(gpio.Low) }
func (g *GPIOIndicator) SetStreaming()  { g.set(gpio.High) }
func (g *GPIOIndicator) SetPaused()     { g.set(gpio.High) }
func (g *GPIOIndicator) SetIdle()       { g.set(gpio.Low) }
func (g *GPIOIndicator) SetError()      { g.set(gpio.Low) }

func (g *GPIOIndicator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pin.Out(gpio.Low)
}

var _ Indicator = (*GPIOIndicator)(nil)
