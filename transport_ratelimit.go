package mqtt311

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedTransport wraps a Transport and paces outbound bytes with a
// token bucket, for deployments on metered or shared uplinks where a burst
// of publishes must not saturate the link. Receiving is never limited.
//
// Send blocks inside the limiter until the whole write is allowed; that is
// consistent with the engine's contract that all suspension happens inside
// the transport.
type RateLimitedTransport struct {
	inner   Transport
	limiter *rate.Limiter
}

// NewRateLimitedTransport wraps inner with an outbound byte-rate limit of
// bytesPerSecond and the given burst size. Writes larger than burst are
// paced in burst-sized chunks.
func NewRateLimitedTransport(inner Transport, bytesPerSecond float64, burst int) *RateLimitedTransport {
	return &RateLimitedTransport{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
	}
}

// Send waits for send quota covering p, then forwards to the wrapped
// transport. Writes larger than the burst size are forwarded in chunks.
func (t *RateLimitedTransport) Send(p []byte) (int, error) {
	sent := 0

	for sent < len(p) {
		chunk := len(p) - sent
		if chunk > t.limiter.Burst() {
			chunk = t.limiter.Burst()
		}

		if err := t.limiter.WaitN(context.Background(), chunk); err != nil {
			return sent, err
		}

		n, err := t.inner.Send(p[sent : sent+chunk])
		sent += n
		if err != nil {
			return sent, err
		}
		if n == 0 {
			return sent, nil
		}
	}

	return sent, nil
}

// Recv forwards to the wrapped transport unchanged.
func (t *RateLimitedTransport) Recv(p []byte) (int, error) {
	return t.inner.Recv(p)
}
