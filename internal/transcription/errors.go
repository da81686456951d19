package transcription

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindHandshakeFailed   ErrorKind = "handshake_failed"
	KindTransportError    ErrorKind = "transport_error"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindTimeout           ErrorKind = "timeout"
)

var (
	ErrHandshakeFailed   = errors.New("transcription handshake failed")
	ErrTransport         = errors.New("transcription transport error")
	ErrMalformedResponse = errors.New("malformed transcription response")
	ErrTimeout           = errors.New("transcription timed out")
)

// SessionError matches its kind's sentinel with errors.Is and also
// unwraps to the underlying cause, if any.
type SessionError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func newSessionError(kind ErrorKind, detail string, err error) *SessionError {
	return &SessionError{Kind: kind, Detail: detail, Err: err}
}

func (e *SessionError) Error() string {
	msg := sentinelFor(e.Kind).Error()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SessionError) Unwrap() []error {
	if e.Err == nil {
		return []error{sentinelFor(e.Kind)}
	}
	return []error{sentinelFor(e.Kind), e.Err}
}

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindHandshakeFailed:
		return ErrHandshakeFailed
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindTimeout:
		return ErrTimeout
	default:
		return ErrTransport
	}
}
