package wire_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/micro-nova/slimproto-go/internal/models"
	"github.com/micro-nova/slimproto-go/internal/wire"
)

func TestReadFrame_RoundTrip(t *testing.T) {
	// A minimal `cont` frame: opcode + 2-byte length prefix around
	// opcode+payload, matching the server->client framing (spec.md §4.1).
	payload := []byte{0, 0, 0, 1, 0} // MetaInt=1, Loop=0
	frame := append([]byte("cont"), payload...)
	var lenPrefix [2]byte
	lenPrefix[0] = byte(len(frame) >> 8)
	lenPrefix[1] = byte(len(frame))

	r := bytes.NewReader(append(lenPrefix[:], frame...))
	got, err := wire.ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Opcode != "cont" {
		t.Errorf("Opcode = %q, want cont", got.Opcode)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("Payload = %v, want %v", got.Payload, payload)
	}
}

func TestReadFrame_OversizeIsFatal(t *testing.T) {
	var lenPrefix [2]byte
	lenPrefix[0] = byte((wire.MaxFrameSize + 1) >> 8)
	lenPrefix[1] = byte((wire.MaxFrameSize + 1) & 0xff)
	r := bytes.NewReader(lenPrefix[:])

	_, err := wire.ReadFrame(r)
	if err == nil {
		t.Fatal("ReadFrame: want error for oversize frame, got nil")
	}
	if !errors.Is(err, models.ErrFrameTooLarge) {
		t.Errorf("err = %v, want wrapping ErrFrameTooLarge", err)
	}
}

func TestReadFrame_TooShortForOpcode(t *testing.T) {
	r := bytes.NewReader([]byte{0, 2, 'a', 'b'})
	_, err := wire.ReadFrame(r)
	if err == nil {
		t.Fatal("ReadFrame: want error for a frame too short to carry an opcode")
	}
}

func TestReadFrame_TruncatedBody(t *testing.T) {
	r := bytes.NewReader([]byte{0, 10, 's', 't', 'r', 'm'}) // claims 10, delivers 4
	_, err := wire.ReadFrame(r)
	if !errors.Is(err, io.ErrUnexpectedEOF) && err == nil {
		t.Fatalf("ReadFrame: want an error on truncated body, got %v", err)
	}
}

func TestEncodeHELO_FieldLayout(t *testing.T) {
	mac := [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	frame := wire.EncodeHELO(wire.HELOParams{
		Reconnect:     true,
		MAC:           mac,
		BytesReceived: 0x0102030405060708,
		Capabilities:  models.Capabilities{Base: "Model=squeezelite", Fixed: ",MaxSampleRate=384000,flac", Variable: ""},
	})

	if string(frame[0:4]) != "HELO" {
		t.Fatalf("opcode = %q, want HELO", frame[0:4])
	}
	length := uint32(frame[4])<<24 | uint32(frame[5])<<16 | uint32(frame[6])<<8 | uint32(frame[7])
	if int(length) != len(frame)-8 {
		t.Errorf("declared length = %d, want %d", length, len(frame)-8)
	}

	fixed := frame[8:]
	if fixed[0] != 12 {
		t.Errorf("deviceid = %d, want 12", fixed[0])
	}
	if !bytes.Equal(fixed[2:8], mac[:]) {
		t.Errorf("MAC = %v, want %v", fixed[2:8], mac)
	}
	wlan := uint16(fixed[8])<<8 | uint16(fixed[9])
	if wlan != 0x4000 {
		t.Errorf("wlan_channellist = %#x, want 0x4000 (reconnect bit set)", wlan)
	}
	gotBytesReceived := uint64(0)
	for _, b := range fixed[10:18] {
		gotBytesReceived = gotBytesReceived<<8 | uint64(b)
	}
	if gotBytesReceived != 0x0102030405060708 {
		t.Errorf("bytes_received = %#x, want 0x0102030405060708", gotBytesReceived)
	}

	caps := string(fixed[18:])
	want := "Model=squeezelite" + ",MaxSampleRate=384000,flac"
	if caps != want {
		t.Errorf("capabilities = %q, want %q", caps, want)
	}
}

func TestEncodeSTAT_ServerTimestampEchoedVerbatim(t *testing.T) {
	// server_timestamp must be written exactly as given, never byte-swapped,
	// even though every other multi-byte field in STAT is big-endian.
	frame := wire.EncodeSTAT(wire.STATParams{
		Event:           "STMt",
		ServerTimestamp: 0xAABBCCDD,
		Status:          models.Status{},
	}, 12345)

	body := frame[8:]
	tsBytes := body[len(body)-4:]
	got := uint32(tsBytes[0])<<24 | uint32(tsBytes[1])<<16 | uint32(tsBytes[2])<<8 | uint32(tsBytes[3])
	if got != 0xAABBCCDD {
		t.Errorf("server_timestamp = %#x, want 0xaabbccdd", got)
	}
	if string(body[0:4]) != "STMt" {
		t.Errorf("event = %q, want STMt", body[0:4])
	}
}

func TestEncodeSTAT_BytesReceivedHighLowSplit(t *testing.T) {
	frame := wire.EncodeSTAT(wire.STATParams{
		Event:  "STMs",
		Status: models.Status{StreamBytes: 0x0102030405060708},
	}, 0)
	body := frame[8:]
	high := uint32(body[15])<<24 | uint32(body[16])<<16 | uint32(body[17])<<8 | uint32(body[18])
	low := uint32(body[19])<<24 | uint32(body[20])<<16 | uint32(body[21])<<8 | uint32(body[22])
	if high != 0x01020304 {
		t.Errorf("bytes_received high = %#x, want 0x01020304", high)
	}
	if low != 0x05060708 {
		t.Errorf("bytes_received low = %#x, want 0x05060708", low)
	}
}

func TestEncodeDSCO(t *testing.T) {
	frame := wire.EncodeDSCO(models.DisconnectRemoteClose)
	if string(frame[0:4]) != "DSCO" {
		t.Fatalf("opcode = %q, want DSCO", frame[0:4])
	}
	if frame[8] != byte(models.DisconnectRemoteClose) {
		t.Errorf("reason byte = %d, want %d", frame[8], models.DisconnectRemoteClose)
	}
}

func TestEncodeSETDName_NulTerminated(t *testing.T) {
	frame := wire.EncodeSETDName("kitchen")
	if string(frame[0:4]) != "SETD" {
		t.Fatalf("opcode = %q, want SETD", frame[0:4])
	}
	body := frame[8:]
	if body[0] != 0 {
		t.Errorf("id = %d, want 0", body[0])
	}
	name := body[1:]
	if name[len(name)-1] != 0 {
		t.Error("name payload is not NUL-terminated")
	}
	if string(name[:len(name)-1]) != "kitchen" {
		t.Errorf("name = %q, want kitchen", name[:len(name)-1])
	}
}

func TestDecodeStrm_FixedFields(t *testing.T) {
	payload := make([]byte, 24)
	payload[0] = 's'
	payload[1] = '1'
	payload[2] = 'f'
	payload[7] = 100 // threshold
	payload[18] = 0x23
	payload[19] = 0x45 // server port
	p, err := wire.DecodeStrm(payload)
	if err != nil {
		t.Fatalf("DecodeStrm: %v", err)
	}
	if p.Command != 's' || p.Autostart != '1' || p.Format != 'f' {
		t.Errorf("unexpected fixed fields: %+v", p)
	}
	if p.Threshold != 100 {
		t.Errorf("Threshold = %d, want 100", p.Threshold)
	}
	if p.ServerPort != 0x2345 {
		t.Errorf("ServerPort = %#x, want 0x2345", p.ServerPort)
	}
	if p.Header != nil {
		t.Errorf("Header = %v, want nil for exactly-fixed-length payload", p.Header)
	}
}

func TestDecodeStrm_WithHeader(t *testing.T) {
	payload := make([]byte, 24)
	payload[0] = 's'
	header := []byte("GET /stream.mp3 HTTP/1.0\r\n\r\n")
	p, err := wire.DecodeStrm(append(payload, header...))
	if err != nil {
		t.Fatalf("DecodeStrm: %v", err)
	}
	if !bytes.Equal(p.Header, header) {
		t.Errorf("Header = %q, want %q", p.Header, header)
	}
}

func TestDecodeStrm_TooShort(t *testing.T) {
	_, err := wire.DecodeStrm(make([]byte, 10))
	if err == nil {
		t.Fatal("DecodeStrm: want error for undersized payload")
	}
}

func TestDecodeSetd_QueryVsSet(t *testing.T) {
	query, err := wire.DecodeSetd([]byte{0})
	if err != nil {
		t.Fatalf("DecodeSetd query: %v", err)
	}
	if query.ID != 0 || len(query.Data) != 0 {
		t.Errorf("query = %+v, want empty Data", query)
	}

	set, err := wire.DecodeSetd(append([]byte{0}, []byte("kitchen\x00")...))
	if err != nil {
		t.Fatalf("DecodeSetd set: %v", err)
	}
	if string(set.Data) != "kitchen" {
		t.Errorf("Data = %q, want kitchen (NUL stripped)", set.Data)
	}
}

func TestDecodeSetd_EmptyDataNoNulPanic(t *testing.T) {
	// A setd with id != 0 and no trailing NUL must not panic on the
	// trailing-NUL-strip bounds check.
	p, err := wire.DecodeSetd([]byte{5})
	if err != nil {
		t.Fatalf("DecodeSetd: %v", err)
	}
	if len(p.Data) != 0 {
		t.Errorf("Data = %v, want empty", p.Data)
	}
}

func TestDecodeServ_WithAndWithoutSyncGroup(t *testing.T) {
	plain, err := wire.DecodeServ([]byte{10, 20, 30, 40})
	if err != nil {
		t.Fatalf("DecodeServ: %v", err)
	}
	if plain.SyncGroupID != nil {
		t.Errorf("SyncGroupID = %v, want nil", plain.SyncGroupID)
	}

	withGroup, err := wire.DecodeServ(append([]byte{10, 20, 30, 40}, []byte("0123456789")...))
	if err != nil {
		t.Fatalf("DecodeServ: %v", err)
	}
	if string(withGroup.SyncGroupID) != "0123456789" {
		t.Errorf("SyncGroupID = %q, want 0123456789", withGroup.SyncGroupID)
	}
}

func TestDecodeDigitIndex_Unknown(t *testing.T) {
	if got := wire.DecodeDigitIndex('?'); got != models.UnknownIndex {
		t.Errorf("DecodeDigitIndex('?') = %d, want UnknownIndex", got)
	}
	if got := wire.DecodeDigitIndex('3'); got != 3 {
		t.Errorf("DecodeDigitIndex('3') = %d, want 3", got)
	}
}

func TestSampleRateFromIndex_OutOfRange(t *testing.T) {
	if got := wire.SampleRateFromIndex(200); got != 0 {
		t.Errorf("SampleRateFromIndex(200) = %d, want 0", got)
	}
	if got := wire.SampleRateFromIndex(3); got != 44100 {
		t.Errorf("SampleRateFromIndex(3) = %d, want 44100", got)
	}
}
