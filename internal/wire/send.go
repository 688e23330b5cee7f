package wire

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"
)

// maxSendRetries and retryDelay mirror slimproto.c's send_packet: up to 10
// retries on a transient would-block, spaced 1ms apart.
const (
	maxSendRetries = 10
	retryDelay     = time.Millisecond
)

// NewRetryLimiter creates a fresh rate limiter pacing one connection's send
// retries, mirroring the teacher's per-device `limiter *rate.Limiter` field
// in internal/hardware/i2c.go: each device (there, an I2C bus; here, one
// player's control connection) gets its own limiter, so a flurry of
// transient errors on one connection can't throttle another's retries.
func NewRetryLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(retryDelay), 1)
}

// SendFrame writes a fully-encoded frame to conn, retrying up to
// maxSendRetries times on a transient (timeout/temporary) error before
// giving up and logging. A non-transient error (closed connection, etc.)
// is returned immediately so the caller can tear down and reconnect.
// limiter paces those retries and must be scoped to this conn (see
// NewRetryLimiter), never shared across connections.
func SendFrame(conn net.Conn, frame []byte, limiter *rate.Limiter) error {
	ptr := frame
	attempts := 0
	for len(ptr) > 0 {
		n, err := conn.Write(ptr)
		if n > 0 {
			ptr = ptr[n:]
		}
		if err == nil {
			continue
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() && attempts < maxSendRetries {
			attempts++
			slog.Debug("wire: retrying frame send", "attempt", attempts)
			if werr := limiter.Wait(context.Background()); werr != nil {
				time.Sleep(retryDelay)
			}
			continue
		}

		slog.Warn("wire: failed writing frame, dropping", "err", err)
		return err
	}
	return nil
}
