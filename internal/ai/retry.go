package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"
)

// retryPolicy is exponential backoff with jitter, capped at max.
type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
}

func (p retryPolicy) normalized() retryPolicy {
	if p.attempts <= 0 {
		p.attempts = 3
	}
	if p.base <= 0 {
		p.base = 500 * time.Millisecond
	}
	if p.max <= 0 {
		p.max = 4 * time.Second
	}
	return p
}

// delay returns the wait before retry number attempt (1-based).
func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.base << (attempt - 1)
	if d <= 0 || d > p.max {
		d = p.max
	}
	d = withJitter(d)
	if d > p.max {
		d = p.max
	}
	return d
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// parseRetryAfter interprets a Retry-After header as seconds or an HTTP date.
func parseRetryAfter(v string) (time.Duration, error) {
	if s, err := strconv.Atoi(v); err == nil {
		if s < 0 {
			s = 0
		}
		return time.Duration(s) * time.Second, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// withJitter returns d with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
