package reliability

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/avarra-systems/chronovoice/internal/media"
)

func TestIsRetryableMedia(t *testing.T) {
	wrapped := fmt.Errorf("probe inbound: %w", media.ErrBadMedia)
	if !IsRetryableMedia(wrapped) {
		t.Fatalf("wrapped ErrBadMedia should be retryable")
	}
	if IsRetryableMedia(errors.New("disk full")) {
		t.Fatalf("arbitrary errors must not be retryable")
	}
	if IsRetryableMedia(nil) {
		t.Fatalf("nil must not be retryable")
	}
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 201, 400, 404} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should not be retryable", code)
		}
	}
}

func TestBackoffCaps(t *testing.T) {
	base := 100 * time.Millisecond
	cap := time.Second
	if got := Backoff(0, base, cap); got != base {
		t.Fatalf("Backoff(0) = %v, want %v", got, base)
	}
	if got := Backoff(2, base, cap); got != 400*time.Millisecond {
		t.Fatalf("Backoff(2) = %v, want 400ms", got)
	}
	if got := Backoff(10, base, cap); got != cap {
		t.Fatalf("Backoff(10) = %v, want cap %v", got, cap)
	}
}
