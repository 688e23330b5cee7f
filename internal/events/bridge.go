package events

import (
	"github.com/micro-nova/slimproto-go/internal/collab"
	"github.com/micro-nova/slimproto-go/internal/models"
)

// BusBridge adapts a Bus into a collab.Bridge, so the controller can treat
// "publish a typed event" and "call the upstream bridge" as the same
// operation. SetTrack always reports success since publishing never fails;
// a real bridge wired in behind a subscriber decides rejection out of band.
type BusBridge struct {
	bus *Bus
}

var _ collab.Bridge = (*BusBridge)(nil)

// NewBusBridge wraps bus as a collab.Bridge.
func NewBusBridge(bus *Bus) *BusBridge {
	return &BusBridge{bus: bus}
}

func (b *BusBridge) Stop()    { b.bus.Publish(BridgeEvent{Action: collab.ActionStop}) }
func (b *BusBridge) Pause()   { b.bus.Publish(BridgeEvent{Action: collab.ActionPause}) }
func (b *BusBridge) Unpause() { b.bus.Publish(BridgeEvent{Action: collab.ActionUnpause}) }
func (b *BusBridge) Play()    { b.bus.Publish(BridgeEvent{Action: collab.ActionPlay}) }

func (b *BusBridge) OnOff(on bool) {
	b.bus.Publish(BridgeEvent{Action: collab.ActionOnOff, OnOff: on})
}

func (b *BusBridge) Volume(gain uint16) {
	b.bus.Publish(BridgeEvent{Action: collab.ActionVolume, Volume: gain})
}

func (b *BusBridge) SetName(name string) {
	b.bus.Publish(BridgeEvent{Action: collab.ActionSetName, Name: name})
}

func (b *BusBridge) SetServer(serverIP uint32) {
	b.bus.Publish(BridgeEvent{Action: collab.ActionSetServer, ServerIP: serverIP})
}

func (b *BusBridge) SetTrack(track models.TrackOpen) bool {
	b.bus.Publish(BridgeEvent{Action: collab.ActionSetTrack, Track: track})
	return true
}
