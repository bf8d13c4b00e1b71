package dashscope

import (
	"context"
	"encoding/base64"
)

// ASRConfig configures a realtime recognition session.
type ASRConfig struct {
	// Model defaults to ModelQwen3ASRFlashRealtime.
	Model string
	// Language is the expected language, for example "zh".
	Language string
	// InputAudioFormat defaults to AudioFormatPCM.
	InputAudioFormat string
	// SampleRate defaults to 16000.
	SampleRate int
	// TurnDetection enables server VAD when set.
	TurnDetection *TurnDetection
}

func (c *ASRConfig) defaults() {
	if c.Model == "" {
		c.Model = ModelQwen3ASRFlashRealtime
	}
	if c.InputAudioFormat == "" {
		c.InputAudioFormat = AudioFormatPCM
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
}

// ASRSession is a realtime recognition session. Audio goes in with
// AppendAudio; transcriptions come out as events.
type ASRSession struct {
	*Conn
	config ASRConfig
}

// ConnectASR dials a recognition session and sends its session.update.
func (s *RealtimeService) ConnectASR(ctx context.Context, cfg ASRConfig) (*ASRSession, error) {
	cfg.defaults()
	conn, err := s.Dial(ctx, cfg.Model)
	if err != nil {
		return nil, err
	}
	sess := &ASRSession{Conn: conn, config: cfg}
	if err := sess.update(); err != nil {
		conn.Close()
		return nil, err
	}
	return sess, nil
}

// Config returns the effective configuration.
func (s *ASRSession) Config() ASRConfig {
	return s.config
}

func (s *ASRSession) update() error {
	transcription := map[string]any{}
	if s.config.Language != "" {
		transcription["language"] = s.config.Language
	}
	session := map[string]any{
		"modalities":                []string{"text"},
		"input_audio_format":        s.config.InputAudioFormat,
		"sample_rate":               s.config.SampleRate,
		"input_audio_transcription": transcription,
	}
	if s.config.TurnDetection != nil {
		session["turn_detection"] = s.config.TurnDetection
	} else {
		session["turn_detection"] = nil
	}
	return s.Send(map[string]any{
		"type":    EventTypeSessionUpdate,
		"session": session,
	})
}

// AppendAudio sends one frame of PCM.
func (s *ASRSession) AppendAudio(pcm []byte) error {
	return s.Send(map[string]any{
		"type":  EventTypeInputAudioAppend,
		"audio": base64.StdEncoding.EncodeToString(pcm),
	})
}

// Commit ends the current utterance when server VAD is off.
func (s *ASRSession) Commit() error {
	return s.Send(map[string]any{"type": EventTypeInputAudioCommit})
}

// Finish tells the server no more audio follows.
func (s *ASRSession) Finish() error {
	return s.Send(map[string]any{"type": EventTypeSessionFinish})
}
