package apiclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds every outbound call unless configured otherwise.
const DefaultTimeout = 30 * time.Second

const (
	msgRequestTimeout  = "Request Timeout"
	msgRequestCanceled = "Request Canceled"
)

// WithTimeout runs call under a deadline. The deadline cancels the in-flight
// request and yields a 408 failure; any other transport error yields status 0.
// Results returned by call itself are passed through untouched.
func WithTimeout(parent context.Context, timeout time.Duration, call func(ctx context.Context) (Result, error)) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	res, err := call(ctx)
	if err == nil {
		return res
	}
	return classifyTransportError(ctx, parent, err)
}

func classifyTransportError(ctx, parent context.Context, err error) Result {
	// the caller went away; not our deadline
	if parent.Err() != nil && !errors.Is(parent.Err(), context.DeadlineExceeded) {
		return Failure(msgRequestCanceled, StatusNetworkError, Meta{})
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Failure(msgRequestTimeout, http.StatusRequestTimeout, Meta{})
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Failure(msgRequestTimeout, http.StatusRequestTimeout, Meta{})
	}
	return Failure(err.Error(), StatusNetworkError, Meta{})
}
