package voice

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/derbi/xiaoxia/pkg/dashscope"
)

var errClosed = errors.New("fake: closed")

// fakeConn is an in-memory realtime connection. The test pushes server
// events with emit and inspects what the client sent.
type fakeConn struct {
	mu       sync.Mutex
	text     []string
	audio    [][]byte
	finished bool

	events    chan *dashscope.Event
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
	onFinish  func()
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events: make(chan *dashscope.Event, 64),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) AppendText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return errClosed
	}
	c.text = append(c.text, text)
	return nil
}

func (c *fakeConn) AppendAudio(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return errClosed
	}
	c.audio = append(c.audio, append([]byte(nil), pcm...))
	return nil
}

func (c *fakeConn) Finish() error {
	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		return errClosed
	}
	c.finished = true
	fn := c.onFinish
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (c *fakeConn) emit(ev *dashscope.Event) {
	c.events <- ev
}

func (c *fakeConn) fail(err error) {
	c.errs <- err
}

func (c *fakeConn) Events() iter.Seq2[*dashscope.Event, error] {
	return func(yield func(*dashscope.Event, error) bool) {
		for {
			select {
			case <-c.closed:
				return
			case err := <-c.errs:
				yield(nil, err)
				return
			case ev := <-c.events:
				if !yield(ev, nil) {
					return
				}
			}
		}
	}
}

func (c *fakeConn) Audio() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for ev, err := range c.Events() {
			if err != nil {
				yield(nil, err)
				return
			}
			switch ev.Type {
			case dashscope.EventTypeResponseAudioDelta:
				if !yield(ev.Audio, nil) {
					return
				}
			case dashscope.EventTypeSessionFinished:
				return
			}
		}
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sentAudio() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.audio...)
}

type fakeService struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
	setup func(*fakeConn)
}

func (s *fakeService) connect() (*fakeConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	c := newFakeConn()
	if s.setup != nil {
		s.setup(c)
	}
	s.conns = append(s.conns, c)
	return c, nil
}

func (s *fakeService) ConnectTTS(context.Context) (SynthesisConn, error) {
	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *fakeService) ConnectASR(context.Context) (RecognitionConn, error) {
	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *fakeService) conn(i int) *fakeConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[i]
}
