package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies a failed call by what the caller should do about it.
type Kind int

const (
	// KindTransient covers timeouts, refused connections, 5xx and
	// exhausted rate-limit retries. Safe to retry; the session survives.
	KindTransient Kind = iota
	// KindUnauthenticated means credentials were rejected and could not be
	// recovered for this call.
	KindUnauthenticated
	// KindForbidden means the session is valid but lacks the role.
	KindForbidden
	// KindSessionExpired means the refresh flow failed and the session
	// was torn down.
	KindSessionExpired
	KindNotFound
	// KindInvalid covers rejected input and unreadable responses.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindSessionExpired:
		return "session_expired"
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// defaultMessage is shown when the server gave nothing better.
func (k Kind) defaultMessage() string {
	switch k {
	case KindTransient:
		return "The server could not be reached. Please try again."
	case KindUnauthenticated:
		return "Please log in to continue."
	case KindForbidden:
		return "You do not have access to this page."
	case KindSessionExpired:
		return "Your session has expired. Please log in again."
	case KindNotFound:
		return "The requested item was not found."
	default:
		return "The request was rejected."
	}
}

// Error is the single shape every failed call is normalized to before it
// reaches UI code. Message is safe to show to the user.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Op is "METHOD /path" for calls that reached the transport.
	Op  string
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Normalize returns err as an *Error. Errors that did not come from the
// client are treated as transient.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Kind: KindTransient, Message: KindTransient.defaultMessage(), Err: err}
}

// Message returns the user-displayable text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	e := Normalize(err)
	if e.Message == "" {
		return e.Kind.defaultMessage()
	}
	return e.Message
}

func kindOf(err error) (Kind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransient
}

// IsSessionExpired reports whether err ended the session.
func IsSessionExpired(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindSessionExpired
}

// IsForbidden reports whether err is an authorization denial.
func IsForbidden(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindForbidden
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

// kindForStatus maps a non-2xx status to a Kind.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthenticated
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return KindTransient
	default:
		return KindInvalid
	}
}

// errorBody is the backend's error envelope. Different controllers use
// different field names.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

// statusError builds an Error for a non-2xx response, preferring the
// server's own message for client errors.
func statusError(op string, status int, body []byte) *Error {
	kind := kindForStatus(status)
	msg := kind.defaultMessage()

	var eb errorBody
	if kind == KindInvalid || kind == KindNotFound || kind == KindForbidden {
		if json.Unmarshal(body, &eb) == nil {
			switch {
			case eb.Message != "":
				msg = eb.Message
			case eb.Detail != "":
				msg = eb.Detail
			case eb.Error != "":
				msg = eb.Error
			}
		}
	}
	return &Error{Kind: kind, Status: status, Message: msg, Op: op}
}

// transportError wraps a failure that happened before a response arrived.
func transportError(op string, err error) *Error {
	msg := KindTransient.defaultMessage()
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		msg = "The server took too long to respond. Please try again."
	case errors.Is(err, context.Canceled):
		msg = "The request was cancelled."
	}
	return &Error{Kind: KindTransient, Message: msg, Op: op, Err: err}
}
