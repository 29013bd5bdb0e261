package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/Sternrassler/suitetalk-client/pkg/oauth"
	"github.com/Sternrassler/suitetalk-client/pkg/pagination"
	"github.com/Sternrassler/suitetalk-client/pkg/ratelimit"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrCancelled is returned when the caller's context ends before or
	// between attempts.
	ErrCancelled = errors.New("operation cancelled")

	// ErrInvalidConfig is returned by constructors for out-of-range settings.
	ErrInvalidConfig = errors.New("invalid client config")

	// ErrMissingCredentials is returned when a credential field is empty.
	ErrMissingCredentials = oauth.ErrMissingCredentials

	// ErrAdmissionQueueFull is returned when the admission gate rejects a call.
	ErrAdmissionQueueFull = ratelimit.ErrQueueFull

	// ErrSearchFailed is returned when the remote reports a failed search page.
	ErrSearchFailed = pagination.ErrSearchFailed

	// ErrPageSizeExhausted is returned when a page of size 1 still times out.
	ErrPageSizeExhausted = pagination.ErrPageSizeExhausted

	// ErrSequenceConsumed is returned when search results are iterated twice.
	ErrSequenceConsumed = pagination.ErrSequenceConsumed
)

// Kind classifies a failure for retry decisions.
type Kind string

const (
	// KindTransientNetwork covers connection failures, remote unavailability,
	// remote rate limiting and per-attempt timeouts. Retried.
	KindTransientNetwork Kind = "transient_network"

	// KindUnauthorized covers rejected credentials and missing permissions.
	KindUnauthorized Kind = "unauthorized"

	// KindClientRejected covers malformed or unsupported requests.
	KindClientRejected Kind = "client_rejected"

	// KindCancelled means the caller's context ended.
	KindCancelled Kind = "cancelled"

	// KindUnexpected covers everything not classified otherwise.
	KindUnexpected Kind = "unexpected"
)

// Error is a classified SuiteTalk call failure.
type Error struct {
	Kind       Kind
	StatusCode int

	// Code is the remote error or fault name, e.g. "invalidSessionFault".
	Code    string
	Message string

	Mark     string
	Endpoint string

	// TimedOut is set when the attempt's own deadline expired.
	TimedOut bool

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("suitetalk %s error", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Endpoint != "" {
		msg += " at " + e.Endpoint
	}
	if e.Mark != "" {
		msg += " [mark " + e.Mark + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the attempt's own deadline expired. The search
// executor shrinks the page size on such errors.
func (e *Error) Timeout() bool {
	return e.TimedOut
}

// KindOf classifies err. Raw context errors are treated as caller
// cancellation; per-attempt timeouts are always wrapped in an *Error by the
// client before they reach here.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransientNetwork
	}
	return KindUnexpected
}

// IsTimeout reports whether err is a per-attempt timeout.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.TimedOut
}

// IsRetryable reports whether the retry policy would retry err.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransientNetwork
}

// classifyStatus maps a non-2xx HTTP status to a kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return KindTransientNetwork
	case status >= 400 && status < 500:
		return KindClientRejected
	case status >= 500:
		return KindTransientNetwork
	default:
		return KindUnexpected
	}
}

// SOAP fault element names and their kinds.
var faultKinds = map[string]Kind{
	"exceededRequestLimitFault":           KindTransientNetwork,
	"exceededConcurrentRequestLimitFault": KindTransientNetwork,
	"invalidCredentialsFault":             KindUnauthorized,
	"invalidSessionFault":                 KindUnauthorized,
	"insufficientPermissionFault":         KindUnauthorized,
	"invalidAccountFault":                 KindUnauthorized,
	"exceededRequestSizeFault":            KindClientRejected,
	"invalidVersionFault":                 KindClientRejected,
	"unexpectedErrorFault":                KindUnexpected,
}

// classifyFault maps a SOAP fault to a kind, falling back to the HTTP status
// for faults without a known NetSuite element.
func classifyFault(name string, status int) Kind {
	if kind, ok := faultKinds[name]; ok {
		return kind
	}
	if status == http.StatusServiceUnavailable {
		return KindTransientNetwork
	}
	return KindUnexpected
}
