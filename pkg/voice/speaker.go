package voice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/derbi/xiaoxia/pkg/audio/pcm"
	"github.com/derbi/xiaoxia/pkg/stream"
)

// DefaultFrame is the playback interval and the microphone frame size.
const DefaultFrame = 20 * time.Millisecond

// SpeakerConfig configures a Speaker.
type SpeakerConfig struct {
	// SampleRate of the synthesized audio. Defaults to 24000.
	SampleRate int
	// Interval between writes to the player. Each write carries exactly
	// Interval of audio. Defaults to DefaultFrame.
	Interval time.Duration
}

// Speaker synthesizes text and plays it.
type Speaker struct {
	reg    *stream.Registry
	synth  Synthesizer
	out    io.Writer
	format pcm.Format
	pacing stream.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSpeaker creates a speaker writing raw PCM to out.
func NewSpeaker(reg *stream.Registry, synth Synthesizer, out io.Writer, cfg SpeakerConfig) (*Speaker, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 24000
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultFrame
	}
	format, err := pcm.ParseSampleRate(cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("voice: speaker: %w", err)
	}
	pacing := stream.Config{
		Interval:  cfg.Interval,
		ChunkSize: format.BytesInDuration(cfg.Interval),
		Priority:  stream.PriorityInterleaved,
	}
	if err := pacing.Validate(); err != nil {
		return nil, fmt.Errorf("voice: speaker: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Speaker{
		reg:    reg,
		synth:  synth,
		out:    out,
		format: format,
		pacing: pacing,
		logger: slog.Default(),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Utterance is one Speak call.
type Utterance struct {
	session *stream.Session[byte]
}

// ID returns the session ID.
func (u *Utterance) ID() stream.ID { return u.session.ID() }

// Done is closed when playback ends or is stopped.
func (u *Utterance) Done() <-chan struct{} { return u.session.Done() }

// Wait blocks until playback ends. It returns the synthesis error of a failed
// utterance and nil for finished or stopped ones.
func (u *Utterance) Wait(ctx context.Context) error { return u.session.Wait(ctx) }

// Stop stops playback immediately and drops buffered audio.
func (u *Utterance) Stop() bool { return u.session.Cancel() }

// Speak starts synthesizing text and returns once the connection is open.
// Any utterance still playing is stopped first.
func (s *Speaker) Speak(ctx context.Context, text string) (*Utterance, error) {
	sess := stream.Begin[byte](s.reg, stream.ChannelTTS)
	u := &Utterance{session: sess}
	p, err := stream.NewPacer(sess, s.pacing, stream.SinkFunc[byte](s.play))
	if err != nil {
		sess.Cancel()
		return nil, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		p.Run(s.ctx)
	}()

	conn, err := s.synth.ConnectTTS(ctx)
	if err == nil {
		if err = conn.AppendText(text); err == nil {
			err = conn.Finish()
		}
		if err != nil {
			conn.Close()
		}
	}
	if err != nil {
		te := &stream.TransportError{Channel: stream.ChannelTTS, ID: sess.ID(), Err: err}
		sess.Fail(te)
		return u, te
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.produce(sess, conn)
	}()
	return u, nil
}

// produce appends synthesized audio to sess until the server finishes, the
// connection fails, or the session closes.
func (s *Speaker) produce(sess *stream.Session[byte], conn SynthesisConn) {
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-sess.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for audio, err := range conn.Audio() {
		if err != nil {
			if sess.Live() {
				s.logger.Warn("voice/speaker: synthesis failed", "id", sess.ID(), "error", err)
				sess.Fail(&stream.TransportError{Channel: stream.ChannelTTS, ID: sess.ID(), Err: err})
			}
			return
		}
		if !sess.Apply(stream.Delta[byte]{Lane: stream.LaneText, Payload: audio}) {
			return
		}
	}
	sess.Finish()
}

func (s *Speaker) play(c stream.Chunk[byte]) error {
	if len(c.Text) == 0 {
		return nil
	}
	_, err := s.out.Write(c.Text)
	return err
}

// Close stops any playing utterance and waits for background work.
func (s *Speaker) Close() {
	s.cancel()
	s.wg.Wait()
}

// Format returns the PCM format written to the player.
func (s *Speaker) Format() pcm.Format {
	return s.format
}
