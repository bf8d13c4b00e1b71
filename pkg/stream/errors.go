package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedFragment marks a raw fragment that could not be parsed.
	// Such fragments are dropped; the stream continues.
	ErrMalformedFragment = errors.New("stream: malformed fragment")

	// ErrUnknownSession is returned for IDs the engine does not know,
	// including sessions that were displaced and forgotten.
	ErrUnknownSession = errors.New("stream: unknown session")
)

// TransportError reports that the producer lost its connection or stream
// before signaling completion.
type TransportError struct {
	Channel Channel
	ID      ID
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream: %s session %d: transport: %v", e.Channel, e.ID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ConsumerError wraps an error returned, or a panic raised, by a consumer
// callback. It is logged and counted; the pacer keeps running.
type ConsumerError struct {
	ID    ID
	Err   error
	Panic any
}

func (e *ConsumerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("stream: session %d: consumer panic: %v", e.ID, e.Panic)
	}
	return fmt.Sprintf("stream: session %d: consumer: %v", e.ID, e.Err)
}

func (e *ConsumerError) Unwrap() error {
	return e.Err
}
