package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrCanceled is returned when a call's context was cancelled because a newer
// request superseded it, the filter changed, or the view was torn down. It is
// never an error for the user.
var ErrCanceled = errors.New("request canceled")

// StatusError is a transport or server failure. Code is the HTTP status, or 0
// when no response was received.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %d %s: %s", e.Op, e.Code, http.StatusText(e.Code), e.Message)
}

func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Transient reports whether retrying the same call is likely to succeed:
// transport failures, 5xx and 429.
func Transient(err error) bool {
	if err == nil || IsCanceled(err) {
		return false
	}
	var se *StatusError
	if !errors.As(err, &se) {
		return true
	}
	return se.Code == 0 || se.Code >= 500 || se.Code == http.StatusTooManyRequests
}
