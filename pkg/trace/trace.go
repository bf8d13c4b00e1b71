package trace

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/derbi/xiaoxia/pkg/chat"
	"github.com/derbi/xiaoxia/pkg/stream"
)

// FormatVersion identifies the recording layout.
const FormatVersion = "xiaoxia-trace/1"

// ErrFormat is returned for data that is not a recording.
var ErrFormat = errors.New("trace: not a recording")

// Kind is what an event did to the session.
type Kind uint8

const (
	// KindData is one SSE data payload.
	KindData Kind = iota
	// KindDone is the clean end of the producer.
	KindDone
	// KindError is a transport failure; Data holds the message.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Header starts every recording.
type Header struct {
	Format  string    `msgpack:"format"`
	Channel string    `msgpack:"channel"`
	Started time.Time `msgpack:"started"`
}

// Event is one recorded producer callback.
type Event struct {
	// At is the offset from the start of the recording.
	At   time.Duration `msgpack:"at"`
	Kind Kind          `msgpack:"kind"`
	Data string        `msgpack:"data,omitempty"`
}

// Recorder appends events to a recording.
type Recorder struct {
	mu    sync.Mutex
	enc   *msgpack.Encoder
	start time.Time
	now   func() time.Time
	err   error
}

// NewRecorder writes the header to w and returns a recorder appending to it.
func NewRecorder(w io.Writer, ch stream.Channel) (*Recorder, error) {
	return newRecorder(w, ch, time.Now)
}

func newRecorder(w io.Writer, ch stream.Channel, now func() time.Time) (*Recorder, error) {
	r := &Recorder{enc: msgpack.NewEncoder(w), start: now(), now: now}
	h := Header{Format: FormatVersion, Channel: string(ch), Started: r.start}
	if err := r.enc.Encode(&h); err != nil {
		return nil, fmt.Errorf("trace: write header: %w", err)
	}
	return r, nil
}

// Record appends one event stamped with the current offset. After the first
// write error every call returns that error.
func (r *Recorder) Record(kind Kind, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	ev := Event{At: r.now().Sub(r.start), Kind: kind, Data: data}
	if err := r.enc.Encode(&ev); err != nil {
		r.err = fmt.Errorf("trace: write event: %w", err)
	}
	return r.err
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Tap returns a Feeder that records every producer callback before passing
// it on to f. Recording errors never affect the session.
func (r *Recorder) Tap(f chat.Feeder) chat.Feeder {
	return &tap{Feeder: f, rec: r}
}

type tap struct {
	chat.Feeder
	rec *Recorder
}

func (t *tap) Feed(id stream.ID, raw []byte) bool {
	t.rec.Record(KindData, string(raw))
	return t.Feeder.Feed(id, raw)
}

func (t *tap) ProducerDone(id stream.ID) bool {
	t.rec.Record(KindDone, "")
	return t.Feeder.ProducerDone(id)
}

func (t *tap) Fail(id stream.ID, err error) bool {
	t.rec.Record(KindError, err.Error())
	return t.Feeder.Fail(id, err)
}

// Read decodes a recording. A recording truncated in the middle of an event
// returns the events before it along with the decode error.
func Read(rd io.Reader) (Header, []Event, error) {
	dec := msgpack.NewDecoder(rd)
	var h Header
	if err := dec.Decode(&h); err != nil {
		return h, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if h.Format != FormatVersion {
		return h, nil, fmt.Errorf("%w: format %q", ErrFormat, h.Format)
	}
	var events []Event
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return h, events, nil
			}
			return h, events, fmt.Errorf("trace: read event %d: %w", len(events), err)
		}
		events = append(events, ev)
	}
}
