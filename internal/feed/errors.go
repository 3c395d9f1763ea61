package feed

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a poll produced nothing to ingest.
type FailureKind int

const (
	// TransientNetworkFailure covers transport errors, non-2xx replies and
	// oversized bodies.
	TransientNetworkFailure FailureKind = iota + 1
	// MalformedFeedPayload covers unparseable JSON, a missing delivery and
	// SIRI error conditions.
	MalformedFeedPayload
	// EmptyPoll is a well-formed reply without a single usable visit.
	EmptyPoll
)

func (k FailureKind) String() string {
	switch k {
	case TransientNetworkFailure:
		return "transient_network_failure"
	case MalformedFeedPayload:
		return "malformed_feed_payload"
	case EmptyPoll:
		return "empty_poll"
	default:
		return "unknown"
	}
}

// PollError is returned by Client.Fetch and Normalize.
type PollError struct {
	Kind FailureKind
	// Status is the HTTP status for non-2xx replies, zero otherwise.
	Status int
	Msg    string
	Err    error
}

func (e *PollError) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// Is matches another *PollError of the same kind, so callers can write
// errors.Is(err, &feed.PollError{Kind: feed.EmptyPoll}).
func (e *PollError) Is(target error) bool {
	t, ok := target.(*PollError)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the failure kind from err, or 0 when err is not a PollError.
func KindOf(err error) FailureKind {
	var pe *PollError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

func newPollError(kind FailureKind, err error, format string, args ...any) *PollError {
	return &PollError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}
