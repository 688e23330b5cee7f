package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/micro-nova/slimproto-go/internal/models"
)

// Frame is a fully-read control-channel frame from the server: a 4-byte
// ASCII opcode and whatever struct/payload bytes followed it.
type Frame struct {
	Opcode  string
	Payload []byte
}

// ReadFrame performs the two-phase framed read described in spec.md §4.4:
// Phase A reads exactly 2 bytes (the big-endian length), Phase B reads
// exactly that many bytes. Both phases use io.ReadFull, which keeps reading
// across short reads until the phase is complete or r returns an error; no
// read deadline is set, so ReadFrame blocks until data, EOF, or a hard error.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, err
	}
	expect := binary.BigEndian.Uint16(lenBuf[:])
	if int(expect) > MaxFrameSize {
		return Frame{}, fmt.Errorf("wire: frame too large (%d > %d): %w", expect, MaxFrameSize, models.ErrFrameTooLarge)
	}
	if expect < 4 {
		return Frame{}, fmt.Errorf("wire: frame too short to carry an opcode (%d bytes)", expect)
	}

	buf := make([]byte, expect)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Frame{}, err
	}

	return Frame{Opcode: string(buf[:4]), Payload: buf[4:]}, nil
}
