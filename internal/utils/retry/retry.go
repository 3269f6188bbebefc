// Package retry runs upstream calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/feichai0017/lease-parser/config"
	"github.com/feichai0017/lease-parser/pkg/logger"
)

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// FromConfig builds a Policy from the retry settings.
func FromConfig(c config.RetryConfig) Policy {
	return Policy{MaxAttempts: c.MaxAttempts, Initial: c.InitialBackoff, Max: c.MaxBackoff}
}

// transientCodes are the gRPC codes Google APIs return for overload and
// contention.
var transientCodes = map[codes.Code]bool{
	codes.Unavailable:       true,
	codes.ResourceExhausted: true,
	codes.Aborted:           true,
}

// NoRetry runs the call once.
var NoRetry = Policy{MaxAttempts: 1}

// StatusError is a non-2xx response from an upstream HTTP API.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Code, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// IsTransient reports whether err is a network failure, a 5xx or a 429, or a
// gRPC Unavailable, ResourceExhausted or Aborted status. Cancellation and
// caller deadlines are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if st := ae.GRPCStatus(); st != nil {
			return transientCodes[st.Code()]
		}
		code := ae.HTTPCode()
		return code == http.StatusTooManyRequests || code >= 500
	}
	if st, ok := status.FromError(err); ok {
		return transientCodes[st.Code()]
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Do calls fn until it succeeds, fails permanently, or the attempts run out.
// The last error is returned unchanged.
func Do(ctx context.Context, p Policy, log logger.Logger, op string, fn func(context.Context) error) error {
	if log == nil {
		log = logger.NewNop()
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	bo := gax.Backoff{Initial: p.Initial, Max: p.Max, Multiplier: 2}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= attempts || !IsTransient(err) {
			return err
		}
		pause := bo.Pause()
		log.Warn("Retrying upstream call",
			logger.String("op", op),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", pause),
			logger.Error(err),
		)
		if serr := gax.Sleep(ctx, pause); serr != nil {
			return err
		}
	}
}
