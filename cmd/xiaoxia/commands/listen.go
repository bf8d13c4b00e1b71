package commands

import (
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/derbi/xiaoxia/pkg/audio/pcm"
	"github.com/derbi/xiaoxia/pkg/cli"
	"github.com/derbi/xiaoxia/pkg/dashscope"
	"github.com/derbi/xiaoxia/pkg/voice"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Transcribe raw PCM speech",
	Long: `Transcribe 16-bit mono PCM with DashScope realtime ASR. Audio is read
from --input or stdin until it ends. The transcript is redrawn on one line
as partial results are revised, with a volume meter in front.

Ctrl-C stops recording and waits for the rest of the transcript; a second
Ctrl-C drops it.

Examples:
  arecord -f S16_LE -r 16000 -c 1 -t raw | xiaoxia listen
  xiaoxia listen --input question.pcm --language zh`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

var (
	listenInput    string
	listenLanguage string
	listenRate     int
)

func init() {
	listenCmd.Flags().StringVarP(&listenInput, "input", "i", "", "input PCM file (default: stdin)")
	listenCmd.Flags().StringVar(&listenLanguage, "language", "zh", "expected language")
	listenCmd.Flags().IntVar(&listenRate, "sample-rate", 16000, "sample rate: 16000, 24000 or 48000")
}

func runListen(cmd *cobra.Command, args []string) error {
	c, err := getContext()
	if err != nil {
		return err
	}
	pacing, err := pacingConfig(c)
	if err != nil {
		return err
	}
	format, err := pcm.ParseSampleRate(listenRate)
	if err != nil {
		return err
	}
	client, err := newDashScopeClient(c)
	if err != nil {
		return err
	}

	var mic io.Reader = os.Stdin
	if listenInput != "" {
		f, err := os.Open(listenInput)
		if err != nil {
			return err
		}
		defer f.Close()
		mic = f
	}

	out := cli.NewTranscriptRenderer(os.Stdout, stdoutStyles())
	trans := &voice.DashScopeASR{Client: client, Config: dashscope.ASRConfig{
		Language:   listenLanguage,
		SampleRate: format.SampleRate(),
	}}
	rz, err := voice.NewRecognizer(newRegistry(), trans, voice.RecognizerConfig{
		Format:   format,
		Pacing:   pacing,
		OnVolume: out.SetLevel,
	})
	if err != nil {
		return err
	}
	defer rz.Close()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	rec, err := rz.Listen(cmd.Context(), mic, out)
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- rec.Wait(cmd.Context()) }()
	stopping := false
	for {
		select {
		case err := <-done:
			return err
		case <-sigs:
			if stopping {
				rec.Cancel()
				continue
			}
			stopping = true
			rec.Stop()
		}
	}
}
