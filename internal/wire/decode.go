package wire

import (
	"encoding/binary"
	"fmt"
)

// StrmPacket is the fixed struct carried by the `strm` opcode, followed by
// an optional variable-length HTTP request header.
type StrmPacket struct {
	Command          byte
	Autostart        byte // ASCII digit '0'-'3'
	Format           byte
	PCMSampleSize    byte
	PCMSampleRate    byte
	PCMChannels      byte
	PCMEndianness    byte
	Threshold        byte
	SPDIFEnable      byte
	TransitionPeriod byte
	TransitionType   byte
	Flags            byte
	OutputThreshold  byte
	Reserved         byte
	ReplayGain       uint32
	ServerPort       uint16
	ServerIP         uint32
	Header           []byte
}

const strmFixedLen = 24

// DecodeStrm decodes a `strm` payload (opcode already stripped).
func DecodeStrm(payload []byte) (StrmPacket, error) {
	if len(payload) < strmFixedLen {
		return StrmPacket{}, fmt.Errorf("wire: strm packet too short (%d bytes)", len(payload))
	}
	p := StrmPacket{
		Command:          payload[0],
		Autostart:        payload[1],
		Format:           payload[2],
		PCMSampleSize:    payload[3],
		PCMSampleRate:    payload[4],
		PCMChannels:      payload[5],
		PCMEndianness:    payload[6],
		Threshold:        payload[7],
		SPDIFEnable:      payload[8],
		TransitionPeriod: payload[9],
		TransitionType:   payload[10],
		Flags:            payload[11],
		OutputThreshold:  payload[12],
		Reserved:         payload[13],
		ReplayGain:       binary.BigEndian.Uint32(payload[14:18]),
		ServerPort:       binary.BigEndian.Uint16(payload[18:20]),
		ServerIP:         binary.BigEndian.Uint32(payload[20:24]),
	}
	if len(payload) > strmFixedLen {
		p.Header = payload[strmFixedLen:]
	}
	return p, nil
}

// ContPacket is the fixed struct carried by the `cont` opcode.
type ContPacket struct {
	MetaInt uint32
	Loop    byte
}

func DecodeCont(payload []byte) (ContPacket, error) {
	if len(payload) < 5 {
		return ContPacket{}, fmt.Errorf("wire: cont packet too short (%d bytes)", len(payload))
	}
	return ContPacket{
		MetaInt: binary.BigEndian.Uint32(payload[0:4]),
		Loop:    payload[4],
	}, nil
}

// CodcPacket carries a standalone format negotiation, identical fields to
// the format portion of StrmPacket.
type CodcPacket struct {
	Format        byte
	PCMSampleSize byte
	PCMSampleRate byte
	PCMChannels   byte
	PCMEndianness byte
}

func DecodeCodc(payload []byte) (CodcPacket, error) {
	if len(payload) < 5 {
		return CodcPacket{}, fmt.Errorf("wire: codc packet too short (%d bytes)", len(payload))
	}
	return CodcPacket{
		Format:        payload[0],
		PCMSampleSize: payload[1],
		PCMSampleRate: payload[2],
		PCMChannels:   payload[3],
		PCMEndianness: payload[4],
	}, nil
}

// AudePacket enables/disables the analog or digital (SPDIF) output path.
type AudePacket struct {
	EnableSPDIF byte
	EnableDAC   byte
}

func DecodeAude(payload []byte) (AudePacket, error) {
	if len(payload) < 2 {
		return AudePacket{}, fmt.Errorf("wire: aude packet too short (%d bytes)", len(payload))
	}
	return AudePacket{EnableSPDIF: payload[0], EnableDAC: payload[1]}, nil
}

// AudgPacket carries the legacy volume-gain pair. old_gainL/old_gainR are
// decoded in network byte order; see the deliberately-preserved L+L bug in
// spec.md §9 / DESIGN.md.
type AudgPacket struct {
	OldGainL uint32
	OldGainR uint32
	Adjust   byte
}

func DecodeAudg(payload []byte) (AudgPacket, error) {
	if len(payload) < 9 {
		return AudgPacket{}, fmt.Errorf("wire: audg packet too short (%d bytes)", len(payload))
	}
	return AudgPacket{
		OldGainL: binary.BigEndian.Uint32(payload[0:4]),
		OldGainR: binary.BigEndian.Uint32(payload[4:8]),
		Adjust:   payload[8],
	}, nil
}

// SetdPacket carries a config-id selector and an optional string payload.
// id 0 is the player name; len(Data)==0 is a query, non-empty is a set.
type SetdPacket struct {
	ID   byte
	Data []byte // NUL-terminated on the wire when non-empty; NUL stripped here
}

func DecodeSetd(payload []byte) (SetdPacket, error) {
	if len(payload) < 1 {
		return SetdPacket{}, fmt.Errorf("wire: setd packet too short (%d bytes)", len(payload))
	}
	data := payload[1:]
	// Strip a single trailing NUL terminator, if present, without risking
	// an out-of-bounds access on an already-empty slice.
	if n := len(data); n > 0 && data[n-1] == 0 {
		data = data[:n-1]
	}
	return SetdPacket{ID: payload[0], Data: data}, nil
}

// ServPacket carries the target server IP for a `serv` (server-switch)
// opcode, plus an optional trailing 10-byte sync-group id.
type ServPacket struct {
	ServerIP    uint32
	SyncGroupID []byte // exactly 10 bytes, or nil
}

const servFixedLen = 4

func DecodeServ(payload []byte) (ServPacket, error) {
	if len(payload) < servFixedLen {
		return ServPacket{}, fmt.Errorf("wire: serv packet too short (%d bytes)", len(payload))
	}
	p := ServPacket{ServerIP: binary.BigEndian.Uint32(payload[0:4])}
	if rest := payload[servFixedLen:]; len(rest) == 10 {
		p.SyncGroupID = rest
	}
	return p, nil
}

// VersPacket carries the server-reported software version as a
// NUL-terminated (or NUL-free) ASCII string.
type VersPacket struct {
	Version string
}

func DecodeVers(payload []byte) (VersPacket, error) {
	s := payload
	for i, b := range s {
		if b == 0 {
			s = s[:i]
			break
		}
	}
	return VersPacket{Version: string(s)}, nil
}
