// Package discovery implements the UDP broadcast probe that locates a
// Logitech Media Server instance and learns its control port, CLI port,
// and software version.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// Port is the well-known SlimProto discovery UDP port.
	Port = 3483

	// DefaultCLIPort is used when a reply omits the CLIP tag.
	DefaultCLIPort = 9090

	pollTimeout = 5 * time.Second
)

// request is "e VERS\0 JSON\0 CLIP" — a 1-byte opcode 'e' (discovery),
// followed by 4-byte tags each terminated by a NUL, except the final one.
var request = []byte("e" + "VERS\x00" + "JSON\x00" + "CLIP")

// Result is what discovery learns about the responding server.
type Result struct {
	ServerIP string
	TCPPort  uint16
	CLIPort  uint16
	Version  string
}

// Probe sends one discovery broadcast and waits up to 5s for a reply,
// retrying until ctx is cancelled or a reply arrives. target is either a
// specific server IP or "255.255.255.255" for a broadcast probe.
func Probe(ctx context.Context, target string) (Result, error) {
	conn, err := newBroadcastSocket()
	if err != nil {
		return Result{}, fmt.Errorf("discovery: %w", err)
	}
	defer conn.Close()

	dest := &net.UDPAddr{IP: net.ParseIP(target), Port: Port}
	if dest.IP == nil {
		dest.IP = net.IPv4bcast
	}

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		if _, err := conn.WriteToUDP(request, dest); err != nil {
			slog.Warn("discovery: broadcast send failed", "err", err)
			time.Sleep(time.Second)
			continue
		}

		if err := conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
			return Result{}, fmt.Errorf("discovery: set deadline: %w", err)
		}

		buf := make([]byte, 512)
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				slog.Debug("discovery: no reply within poll window, retrying")
				continue
			}
			return Result{}, fmt.Errorf("discovery: read: %w", err)
		}

		result, err := parseReply(buf[:n])
		if err != nil {
			slog.Warn("discovery: malformed reply, ignoring", "from", from.IP, "err", err)
			continue
		}
		result.ServerIP = from.IP.String()
		slog.Info("discovery: server found", "ip", result.ServerIP, "port", result.TCPPort, "cli_port", result.CLIPort, "version", result.Version)
		return result, nil
	}
}

// newBroadcastSocket opens a UDP socket with SO_BROADCAST set before bind,
// mirroring the raw ioctl/syscall style the teacher uses for its I2C
// device fd (internal/hardware/i2c.go) rather than relying on net's
// higher-level helpers, which have no broadcast knob.
func newBroadcastSocket() (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("listen udp4: %w", err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("unexpected packet conn type %T", pc)
	}
	return conn, nil
}

// parseReply decodes the TLV-ish discovery reply: 4-byte tag, 1-byte
// length, then that many bytes of ASCII value, repeated.
func parseReply(buf []byte) (Result, error) {
	res := Result{CLIPort: DefaultCLIPort}
	i := 0
	found := false
	for i+5 <= len(buf) {
		tag := string(buf[i : i+4])
		length := int(buf[i+4])
		i += 5
		if i+length > len(buf) {
			return Result{}, fmt.Errorf("discovery: truncated %s value", tag)
		}
		value := buf[i : i+length]
		i += length

		switch tag {
		case "VERS":
			res.Version = string(value)
			found = true
		case "JSON":
			port, err := parseASCIIPort(value)
			if err != nil {
				return Result{}, fmt.Errorf("discovery: JSON port: %w", err)
			}
			res.TCPPort = port
			found = true
		case "CLIP":
			port, err := parseASCIIPort(value)
			if err != nil {
				return Result{}, fmt.Errorf("discovery: CLIP port: %w", err)
			}
			res.CLIPort = port
			found = true
		}
	}
	if !found {
		return Result{}, fmt.Errorf("discovery: no recognized tags in reply")
	}
	return res, nil
}

func parseASCIIPort(value []byte) (uint16, error) {
	var port uint32
	for _, b := range value {
		if b < '0' || b > '9' {
			return 0, fmt.Errorf("non-digit byte %q", b)
		}
		port = port*10 + uint32(b-'0')
	}
	if port > 0xffff {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return uint16(port), nil
}
