package queue

import (
	"fmt"

	"proxylog/internal/gateway"
	"proxylog/internal/util/logx"
)

// ErrorSink receives every non-cancellation failure the user should see.
// statusCode is the HTTP status, or 0 for transport failures.
type ErrorSink func(message string, statusCode int)

// CallOptions control how a failed call is surfaced.
type CallOptions struct {
	// SuppressError keeps the failure away from the ErrorSink.
	SuppressError bool
	// PropagateError returns the failure to the caller instead of swallowing it.
	PropagateError bool
}

// RangeError is a caller bug: a content window outside the current bounds.
type RangeError struct {
	From, To, Total int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("content range [%d,%d) outside [0,%d)", e.From, e.To, e.Total)
}

type reporter struct {
	sink ErrorSink
}

// handle routes err according to opts. Cancellations never reach the sink.
func (r reporter) handle(op string, err error, opts CallOptions) error {
	if err == nil {
		return nil
	}
	if gateway.IsCanceled(err) {
		logx.Debugf("%s: cancelled", op)
		if opts.PropagateError {
			return err
		}
		return nil
	}
	logx.Warnf("%s: %v", op, err)
	if !opts.SuppressError && r.sink != nil {
		r.sink(err.Error(), gateway.StatusCode(err))
	}
	if opts.PropagateError {
		return err
	}
	return nil
}
