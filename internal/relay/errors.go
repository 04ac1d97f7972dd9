package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a failed upload.
type Kind int

const (
	KindTooLarge Kind = iota + 1
	KindTransport
	KindRemoteRejected
)

func (k Kind) String() string {
	switch k {
	case KindTooLarge:
		return "too_large"
	case KindTransport:
		return "transport"
	case KindRemoteRejected:
		return "remote_rejected"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; any *Error of the same kind matches.
var (
	ErrTooLarge       = &Error{Kind: KindTooLarge}
	ErrTransport      = &Error{Kind: KindTransport}
	ErrRemoteRejected = &Error{Kind: KindRemoteRejected}

	ErrNoImage = errors.New("relay: no image provided")
)

// Error is a failed upload. Remote and Details hold whatever the image host
// or relay endpoint reported, unmodified.
type Error struct {
	Kind    Kind
	Status  int
	Remote  string
	Details json.RawMessage
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Remote != "":
		return fmt.Sprintf("relay %s: %s", e.Kind, e.Remote)
	case e.Err != nil:
		return fmt.Sprintf("relay %s: %v", e.Kind, e.Err)
	default:
		return "relay " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Status == 0 && t.Remote == "" && t.Err == nil
}

// Message is the text worth showing next to the control that started the
// upload: the remote message when there is one.
func (e *Error) Message() string {
	if e.Remote != "" {
		return e.Remote
	}
	switch e.Kind {
	case KindTooLarge:
		return "Image too large"
	case KindTransport:
		return "Could not reach the image service. Please try again."
	default:
		return "Image upload failed"
	}
}

func tooLarge(size, limit int64) *Error {
	return &Error{Kind: KindTooLarge, Err: fmt.Errorf("%d bytes exceeds limit of %d", size, limit)}
}
