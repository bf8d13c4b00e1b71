package dashscope

import (
	"context"
	"iter"
)

// TTSConfig configures a realtime speech synthesis session.
type TTSConfig struct {
	// Model defaults to ModelQwen3TTSFlashRealtime.
	Model string
	// Voice defaults to VoiceSunny.
	Voice string
	// ResponseFormat defaults to AudioFormatPCM.
	ResponseFormat string
	// SampleRate defaults to 24000.
	SampleRate int
	// Mode defaults to ModeServerCommit.
	Mode string
	// LanguageType is optional, for example "Chinese" or "Auto".
	LanguageType string
}

func (c *TTSConfig) defaults() {
	if c.Model == "" {
		c.Model = ModelQwen3TTSFlashRealtime
	}
	if c.Voice == "" {
		c.Voice = VoiceSunny
	}
	if c.ResponseFormat == "" {
		c.ResponseFormat = AudioFormatPCM
	}
	if c.SampleRate == 0 {
		c.SampleRate = 24000
	}
	if c.Mode == "" {
		c.Mode = ModeServerCommit
	}
}

// TTSSession is a realtime synthesis session. Text goes in with AppendText;
// audio comes out as response.audio.delta events.
type TTSSession struct {
	*Conn
	config TTSConfig
}

// ConnectTTS dials a synthesis session and sends its session.update.
func (s *RealtimeService) ConnectTTS(ctx context.Context, cfg TTSConfig) (*TTSSession, error) {
	cfg.defaults()
	conn, err := s.Dial(ctx, cfg.Model)
	if err != nil {
		return nil, err
	}
	sess := &TTSSession{Conn: conn, config: cfg}
	if err := sess.update(); err != nil {
		conn.Close()
		return nil, err
	}
	return sess, nil
}

// Config returns the effective configuration.
func (s *TTSSession) Config() TTSConfig {
	return s.config
}

func (s *TTSSession) update() error {
	session := map[string]any{
		"voice":           s.config.Voice,
		"response_format": s.config.ResponseFormat,
		"sample_rate":     s.config.SampleRate,
		"mode":            s.config.Mode,
	}
	if s.config.LanguageType != "" {
		session["language_type"] = s.config.LanguageType
	}
	return s.Send(map[string]any{
		"type":    EventTypeSessionUpdate,
		"session": session,
	})
}

// AppendText adds text to synthesize.
func (s *TTSSession) AppendText(text string) error {
	return s.Send(map[string]any{
		"type": EventTypeInputTextAppend,
		"text": text,
	})
}

// Commit synthesizes the buffered text. Only needed in ModeCommit.
func (s *TTSSession) Commit() error {
	return s.Send(map[string]any{"type": EventTypeInputTextCommit})
}

// Finish tells the server no more text follows. The server answers with
// session.finished once all audio has been sent.
func (s *TTSSession) Finish() error {
	return s.Send(map[string]any{"type": EventTypeSessionFinish})
}

// Audio iterates over synthesized PCM until session.finished. Error events
// end the iteration with the error.
func (s *TTSSession) Audio() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for ev, err := range s.Events() {
			if err != nil {
				yield(nil, err)
				return
			}
			switch ev.Type {
			case EventTypeResponseAudioDelta:
				if len(ev.Audio) > 0 && !yield(ev.Audio, nil) {
					return
				}
			case EventTypeSessionFinished:
				return
			}
		}
	}
}
