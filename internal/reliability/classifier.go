package reliability

import (
	"errors"
	"time"

	"github.com/avarra-systems/chronovoice/internal/media"
)

// IsRetryableMedia reports whether err is the transient "file not yet a
// valid container" kind that the work queue may retry.
func IsRetryableMedia(err error) bool {
	return errors.Is(err, media.ErrBadMedia)
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes. Used only
// for diagnostics on planner uploads; uploads are never retried
// automatically.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// Backoff computes a deterministic capped backoff duration for a retry
// attempt.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
