package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derbi/xiaoxia/pkg/cli"
	"github.com/derbi/xiaoxia/pkg/dashscope"
	"github.com/derbi/xiaoxia/pkg/voice"
)

var speakCmd = &cobra.Command{
	Use:   "speak [text]",
	Short: "Synthesize speech to raw PCM",
	Long: `Synthesize text with DashScope realtime TTS and write 16-bit mono PCM,
paced in real time, to --output or stdout. Text is read from stdin when no
argument is given.

Examples:
  xiaoxia speak "你好，我是小夏" | aplay -f S16_LE -r 24000 -c 1
  xiaoxia speak --voice Cherry -o hello.pcm "你好"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSpeak,
}

var (
	speakVoice  string
	speakOutput string
	speakRate   int
)

func init() {
	speakCmd.Flags().StringVar(&speakVoice, "voice", "", "voice (default from context, then "+dashscope.VoiceSunny+")")
	speakCmd.Flags().StringVarP(&speakOutput, "output", "o", "", "output file (default: stdout)")
	speakCmd.Flags().IntVar(&speakRate, "sample-rate", 24000, "sample rate: 16000, 24000 or 48000")
}

// countingWriter counts what the player was given.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func runSpeak(cmd *cobra.Command, args []string) error {
	c, err := getContext()
	if err != nil {
		return err
	}
	text, err := argOrStdin(args)
	if err != nil {
		return err
	}
	client, err := newDashScopeClient(c)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if speakOutput != "" {
		f, err := os.Create(speakOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	out := &countingWriter{w: w}

	voiceName := speakVoice
	if voiceName == "" {
		voiceName = c.Voice
	}
	synth := &voice.DashScopeTTS{Client: client, Config: dashscope.TTSConfig{Voice: voiceName, SampleRate: speakRate}}
	sp, err := voice.NewSpeaker(newRegistry(), synth, out, voice.SpeakerConfig{SampleRate: speakRate})
	if err != nil {
		return err
	}
	defer sp.Close()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	start := time.Now()
	u, err := sp.Speak(cmd.Context(), text)
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- u.Wait(cmd.Context()) }()
	select {
	case err = <-done:
	case <-sigs:
		u.Stop()
		err = <-done
	}
	fmt.Fprintf(os.Stderr, "%s\n", stderrStyles().Help.Render(fmt.Sprintf("played %s (%s of audio) in %s",
		cli.FormatBytes(out.n), cli.FormatDuration(sp.Format().Duration(int(out.n))), cli.FormatDuration(time.Since(start)))))
	return err
}

func argOrStdin(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no text given")
	}
	return text, nil
}
