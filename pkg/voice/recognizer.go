package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/derbi/xiaoxia/pkg/audio/pcm"
	"github.com/derbi/xiaoxia/pkg/dashscope"
	"github.com/derbi/xiaoxia/pkg/stream"
)

// trailingSilence is appended after the last microphone frame so the server
// can close the final utterance.
const trailingSilence = 512

// RecognizerConfig configures a Recognizer.
type RecognizerConfig struct {
	// Format of the microphone audio. Defaults to 16 kHz.
	Format pcm.Format
	// Frame is the duration of audio sent per message. Defaults to
	// DefaultFrame.
	Frame time.Duration
	// Pacing controls how the transcript is released to the renderer.
	// Defaults to stream.DefaultConfig.
	Pacing stream.Config
	// OnVolume, if set, receives the level of every frame in [0, 1].
	OnVolume func(level float64)
}

// Recognizer transcribes microphone audio into paced text.
type Recognizer struct {
	reg    *stream.Registry
	trans  Transcriber
	cfg    RecognizerConfig
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRecognizer creates a recognizer.
func NewRecognizer(reg *stream.Registry, trans Transcriber, cfg RecognizerConfig) (*Recognizer, error) {
	if cfg.Frame == 0 {
		cfg.Frame = DefaultFrame
	}
	if cfg.Pacing == (stream.Config{}) {
		cfg.Pacing = stream.DefaultConfig()
	}
	if err := cfg.Pacing.Validate(); err != nil {
		return nil, fmt.Errorf("voice: recognizer: %w", err)
	}
	if cfg.Format.BytesInDuration(cfg.Frame) == 0 {
		return nil, fmt.Errorf("voice: recognizer: frame %v too short", cfg.Frame)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Recognizer{
		reg:    reg,
		trans:  trans,
		cfg:    cfg,
		logger: slog.Default(),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Recognition is one Listen call.
type Recognition struct {
	session  *stream.Session[rune]
	mic      io.Reader
	stopOnce sync.Once
	stopCh   chan struct{}
}

// ID returns the session ID.
func (r *Recognition) ID() stream.ID { return r.session.ID() }

// Done is closed when the transcript has been fully delivered or the
// recognition was cancelled.
func (r *Recognition) Done() <-chan struct{} { return r.session.Done() }

// Wait blocks until the recognition closes. It returns the connection error
// of a failed recognition, nil otherwise.
func (r *Recognition) Wait(ctx context.Context) error { return r.session.Wait(ctx) }

// Stop ends recording gracefully: the microphone stops, the server is told
// the audio is over, and the rest of the transcript is still delivered.
func (r *Recognition) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		if c, ok := r.mic.(io.Closer); ok {
			c.Close()
		}
	})
}

// Cancel drops the recognition immediately.
func (r *Recognition) Cancel() bool {
	ok := r.session.Cancel()
	r.Stop()
	return ok
}

func (r *Recognition) stopping() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

// Listen connects, starts streaming mic and returns once the connection is
// open. Any recognition still running is cancelled first. The transcript is
// paced to out: partial results replace the uncommitted tail, completed
// sentences are kept.
//
// If mic implements io.Closer it is closed when the recognition stops.
// Otherwise a Read still pending at that point is left to finish in the
// background and its data is discarded.
func (rz *Recognizer) Listen(ctx context.Context, mic io.Reader, out stream.Renderer) (*Recognition, error) {
	sess := stream.Begin[rune](rz.reg, stream.ChannelASR)
	rec := &Recognition{session: sess, mic: mic, stopCh: make(chan struct{})}
	p, err := stream.NewPacer(sess, rz.cfg.Pacing, stream.SinkFunc[rune](func(c stream.Chunk[rune]) error {
		return out.Render(stream.TextChunk(c))
	}))
	if err != nil {
		sess.Cancel()
		return nil, err
	}
	rz.wg.Add(1)
	go func() {
		defer rz.wg.Done()
		p.Run(rz.ctx)
	}()

	conn, err := rz.trans.ConnectASR(ctx)
	if err != nil {
		te := &stream.TransportError{Channel: stream.ChannelASR, ID: sess.ID(), Err: err}
		sess.Fail(te)
		rec.Stop()
		return rec, te
	}

	rz.wg.Add(1)
	go func() {
		defer rz.wg.Done()
		rz.run(rec, conn)
	}()
	return rec, nil
}

func (rz *Recognizer) run(rec *Recognition, conn RecognitionConn) {
	sess := rec.session
	defer conn.Close()
	defer rec.Stop()

	g, gctx := errgroup.WithContext(rz.ctx)
	g.Go(func() error {
		select {
		case <-sess.Done():
		case <-gctx.Done():
		}
		rec.Stop()
		conn.Close()
		return nil
	})
	g.Go(func() error {
		return rz.record(rec, conn)
	})
	g.Go(func() error {
		defer rec.Stop()
		if err := rz.transcribe(sess, conn); err != nil {
			return err
		}
		return errDone
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, errDone) && sess.Live() {
		rz.logger.Warn("voice/recognizer: recognition failed", "id", sess.ID(), "error", err)
		sess.Fail(&stream.TransportError{Channel: stream.ChannelASR, ID: sess.ID(), Err: err})
	}
}

var errDone = errors.New("voice: transcription done")

type micFrame struct {
	data []byte
	err  error
}

// readFrames reads mic on its own goroutine so a blocked Read never holds up
// the recording loop. The goroutine exits after the first read error or, once
// quit is closed, after its current Read returns.
func (rz *Recognizer) readFrames(mic io.Reader, quit <-chan struct{}) <-chan micFrame {
	frames := make(chan micFrame)
	go func() {
		for {
			data, err := rz.cfg.Format.ReadFrame(mic, rz.cfg.Frame)
			select {
			case frames <- micFrame{data: data, err: err}:
			case <-quit:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return frames
}

// record streams microphone frames until Stop, the end of mic, or the
// session closing. On a graceful end it sends trailing silence and tells the
// server the audio is over.
func (rz *Recognizer) record(rec *Recognition, conn RecognitionConn) error {
	sess := rec.session
	format := rz.cfg.Format
	quit := make(chan struct{})
	defer close(quit)
	frames := rz.readFrames(rec.mic, quit)

loop:
	for {
		var f micFrame
		select {
		case <-rec.stopCh:
			break loop
		case <-sess.Done():
			return nil
		case f = <-frames:
		}
		if len(f.data) > 0 && !rec.stopping() {
			if rz.cfg.OnVolume != nil {
				rz.cfg.OnVolume(format.Volume(f.data))
			}
			if err := conn.AppendAudio(f.data); err != nil {
				if !sess.Live() {
					return nil
				}
				return err
			}
		}
		if f.err != nil {
			if errors.Is(f.err, io.EOF) || errors.Is(f.err, io.ErrUnexpectedEOF) || rec.stopping() {
				break loop
			}
			return fmt.Errorf("voice: microphone: %w", f.err)
		}
	}
	if !sess.Live() {
		return nil
	}
	if err := conn.AppendAudio(make([]byte, trailingSilence)); err != nil {
		return err
	}
	return conn.Finish()
}

// transcribe reconciles recognition events into sess. The lane holds the
// completed sentences followed by the current partial result, which the
// server keeps revising, so every update is a Replace.
func (rz *Recognizer) transcribe(sess *stream.Session[rune], conn RecognitionConn) error {
	var committed string
	for ev, err := range conn.Events() {
		if err != nil {
			if !sess.Live() {
				return nil
			}
			return err
		}
		switch ev.Type {
		case dashscope.EventTypeTranscriptionText:
			partial := ev.Partial()
			if partial == "" {
				continue
			}
			if !sess.Apply(stream.TextDelta(stream.LaneText, stream.ModeReplace, committed+partial)) {
				return nil
			}
		case dashscope.EventTypeTranscriptionComplete:
			committed += ev.Transcript
			if !sess.Apply(stream.TextDelta(stream.LaneText, stream.ModeReplace, committed)) {
				return nil
			}
		case dashscope.EventTypeTranscriptionFailed:
			if ev.Error != nil {
				return &dashscope.Error{Code: ev.Error.Code, Message: ev.Error.Message}
			}
			return errors.New("voice: transcription failed")
		case dashscope.EventTypeSessionFinished:
			sess.Finish()
			return nil
		}
	}
	// Connection ended without session.finished.
	sess.Finish()
	return nil
}

// Close cancels any running recognition and waits for background work.
func (rz *Recognizer) Close() {
	rz.cancel()
	rz.wg.Wait()
}
