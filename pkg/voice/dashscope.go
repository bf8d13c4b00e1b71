package voice

import (
	"context"
	"iter"

	"github.com/derbi/xiaoxia/pkg/dashscope"
)

// SynthesisConn is one synthesis connection.
type SynthesisConn interface {
	AppendText(text string) error
	Finish() error
	Audio() iter.Seq2[[]byte, error]
	Close() error
}

// Synthesizer opens synthesis connections.
type Synthesizer interface {
	ConnectTTS(ctx context.Context) (SynthesisConn, error)
}

// RecognitionConn is one recognition connection.
type RecognitionConn interface {
	AppendAudio(pcm []byte) error
	Finish() error
	Events() iter.Seq2[*dashscope.Event, error]
	Close() error
}

// Transcriber opens recognition connections.
type Transcriber interface {
	ConnectASR(ctx context.Context) (RecognitionConn, error)
}

// DashScopeTTS synthesizes with DashScope realtime TTS.
type DashScopeTTS struct {
	Client *dashscope.Client
	Config dashscope.TTSConfig
}

// ConnectTTS implements Synthesizer.
func (d *DashScopeTTS) ConnectTTS(ctx context.Context) (SynthesisConn, error) {
	sess, err := d.Client.Realtime.ConnectTTS(ctx, d.Config)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// DashScopeASR transcribes with DashScope realtime ASR.
type DashScopeASR struct {
	Client *dashscope.Client
	Config dashscope.ASRConfig
}

// ConnectASR implements Transcriber.
func (d *DashScopeASR) ConnectASR(ctx context.Context) (RecognitionConn, error) {
	sess, err := d.Client.Realtime.ConnectASR(ctx, d.Config)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
