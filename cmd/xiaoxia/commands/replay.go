package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derbi/xiaoxia/pkg/cli"
	"github.com/derbi/xiaoxia/pkg/stream"
	"github.com/derbi/xiaoxia/pkg/trace"
	"github.com/derbi/xiaoxia/pkg/wire"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Replay a recorded or scripted chat stream",
	Long: `Replay a chat stream through the pacer without a server.

The file is either a recording made with 'chat --record' or a YAML script
(.yaml, .yml). Fragments are fed at their recorded offsets divided by
--rate; a rate of 0 feeds them all at once.

Examples:
  xiaoxia replay turn.trace
  xiaoxia replay --rate 2 --speed fast turn.trace
  xiaoxia replay --dump turn.trace > turn.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var (
	replayRate float64
	replayDump bool
)

func init() {
	replayCmd.Flags().Float64Var(&replayRate, "rate", 1, "playback rate of the recorded timing; 0 for no delays")
	replayCmd.Flags().BoolVar(&replayDump, "dump", false, "print the stream as a YAML script instead of replaying it")
}

func loadEvents(path string) ([]trace.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return trace.LoadScript(f)
	}
	_, events, err := trace.Read(f)
	if err != nil && len(events) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %v; replaying %d events\n", err, len(events))
		return events, nil
	}
	return events, err
}

func runReplay(cmd *cobra.Command, args []string) error {
	events, err := loadEvents(args[0])
	if err != nil {
		return err
	}
	if replayDump {
		return trace.WriteScript(os.Stdout, events)
	}

	c, err := getContext()
	if err != nil {
		return err
	}
	pacing, err := pacingConfig(c)
	if err != nil {
		return err
	}
	engine, err := stream.NewEngine(newRegistry(), wire.DashScope{}, pacing)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := cli.NewStreamRenderer(os.Stdout, stdoutStyles())
	id := engine.Begin(stream.ChannelChat, out)
	if err := trace.Replay(cmd.Context(), events, engine, id, replayRate); err != nil {
		engine.Cancel(id)
		return err
	}
	return engine.Wait(cmd.Context(), id)
}
