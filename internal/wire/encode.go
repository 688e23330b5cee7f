package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/micro-nova/slimproto-go/internal/models"
)

// writeFrame writes opcode + a big-endian length of everything that
// follows, then the fixed struct bytes and the variable payload, matching
// the sent-frame convention in spec.md §4.1 (distinct from the
// length-prefixed receive framing in frame.go).
func writeFrame(opcode string, fixed []byte, payload []byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(opcode)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(fixed)+len(payload)))
	buf.Write(lenBuf[:])
	buf.Write(fixed)
	buf.Write(payload)
	return buf.Bytes()
}

// HELOParams is the set of fields needed to render a HELO frame.
type HELOParams struct {
	Reconnect     bool
	MAC           [6]byte
	BytesReceived uint64
	Capabilities  models.Capabilities
}

// EncodeHELO renders the HELO frame: device id 12 (SqueezePlay), revision
// 0, MAC, the reconnect bit in wlan_channellist, cumulative bytes received
// split high/low, then the base+fixed+variable capability strings
// concatenated.
func EncodeHELO(p HELOParams) []byte {
	var fixed [18]byte
	fixed[0] = 12 // deviceid: SqueezePlay
	fixed[1] = 0  // revision
	copy(fixed[2:8], p.MAC[:])
	var wlan uint16
	if p.Reconnect {
		wlan = 0x4000
	}
	binary.BigEndian.PutUint16(fixed[8:10], wlan)
	binary.BigEndian.PutUint32(fixed[10:14], uint32(p.BytesReceived>>32))
	binary.BigEndian.PutUint32(fixed[14:18], uint32(p.BytesReceived&0xffffffff))

	caps := p.Capabilities.Base + p.Capabilities.Fixed + p.Capabilities.Variable
	return writeFrame("HELO", fixed[:], []byte(caps))
}

// STATParams is the set of fields needed to render a STAT frame.
type STATParams struct {
	Event           string // 4 ASCII chars, e.g. "STMs"
	ServerTimestamp uint32 // echoed verbatim, NOT byte-swapped
	Status          models.Status
}

// EncodeSTAT renders a STAT frame from a Status snapshot. server_timestamp
// is written as-is (spec.md §4.1: "server_timestamp in STAT, which is
// echoed verbatim from the server").
func EncodeSTAT(p STATParams, nowMS uint32) []byte {
	var fixed [43]byte
	copy(fixed[0:4], []byte(p.Event))
	// fixed[4] num_crlf, fixed[5] mas_initialized, fixed[6] mas_mode: left zero
	binary.BigEndian.PutUint32(fixed[7:11], p.Status.StreamFull)
	binary.BigEndian.PutUint32(fixed[11:15], p.Status.StreamSize)
	binary.BigEndian.PutUint32(fixed[15:19], uint32(p.Status.StreamBytes>>32))
	binary.BigEndian.PutUint32(fixed[19:23], uint32(p.Status.StreamBytes&0xffffffff))
	binary.BigEndian.PutUint16(fixed[23:25], 0xffff) // signal_strength: not applicable
	binary.BigEndian.PutUint32(fixed[25:29], nowMS)
	binary.BigEndian.PutUint32(fixed[29:33], p.Status.OutputSize)
	binary.BigEndian.PutUint32(fixed[33:37], p.Status.OutputFull)
	binary.BigEndian.PutUint32(fixed[37:41], p.Status.MsPlayed/1000)
	// fixed[41:43] voltage: left zero
	tail := make([]byte, 8)
	binary.BigEndian.PutUint32(tail[0:4], p.Status.MsPlayed)
	binary.BigEndian.PutUint32(tail[4:8], p.ServerTimestamp)

	return writeFrame("STAT", append(fixed[:], tail...), nil)
}

// EncodeDSCO renders a DSCO (stream disconnected) frame.
func EncodeDSCO(code models.DisconnectCode) []byte {
	return writeFrame("DSCO", []byte{byte(code)}, nil)
}

// EncodeRESP renders a RESP (HTTP response headers relay) frame.
func EncodeRESP(header []byte) []byte {
	return writeFrame("RESP", nil, header)
}

// EncodeMETA renders a META (ICY metadata relay) frame.
func EncodeMETA(meta []byte) []byte {
	return writeFrame("META", nil, meta)
}

// EncodeSETDName renders a SETD frame for id 0 (player name), used both to
// answer a name query and to confirm a name change.
func EncodeSETDName(name string) []byte {
	payload := append([]byte(name), 0)
	return writeFrame("SETD", []byte{0}, payload)
}
