package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derbi/xiaoxia/pkg/chat"
	"github.com/derbi/xiaoxia/pkg/cli"
	"github.com/derbi/xiaoxia/pkg/stream"
	"github.com/derbi/xiaoxia/pkg/trace"
	"github.com/derbi/xiaoxia/pkg/wire"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with streamed, paced answers",
	Long: `Chat with the assistant. With a message argument one turn is sent;
without, messages are read line by line from stdin.

Reasoning, when the backend streams it, is shown dimmed before the answer.
Ctrl-C stops the current answer; a second Ctrl-C at the prompt exits.

Examples:
  xiaoxia chat "今天适合做什么"
  xiaoxia chat --deep-thinking --speed fast
  xiaoxia chat --record turn.trace "讲个故事"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

var (
	chatDeepThinking bool
	chatWebSearch    bool
	chatRecord       string
)

func init() {
	chatCmd.Flags().BoolVar(&chatDeepThinking, "deep-thinking", false, "ask the backend to stream its reasoning")
	chatCmd.Flags().BoolVar(&chatWebSearch, "web-search", false, "allow the backend to search the web")
	chatCmd.Flags().StringVar(&chatRecord, "record", "", "record the raw stream to this file for replay")
}

func newBackend(ctx context.Context, c *cli.Context) (chat.Backend, error) {
	switch c.BackendName() {
	case cli.BackendApp:
		client, err := newDashScopeClient(c)
		if err != nil {
			return nil, err
		}
		return &chat.AppBackend{Client: client, AppID: c.AppID}, nil
	case cli.BackendOpenAI:
		return chat.NewOpenAIBackend(c.APIKey, c.BaseURL, c.Model), nil
	case cli.BackendHTTP:
		b := chat.NewHTTPBackend(c.BaseURL, c.UserID)
		b.InitSession(ctx)
		return b, nil
	}
	return nil, fmt.Errorf("unknown backend %q", c.Backend)
}

func runChat(cmd *cobra.Command, args []string) error {
	c, err := getContext()
	if err != nil {
		return err
	}
	pacing, err := pacingConfig(c)
	if err != nil {
		return err
	}
	backend, err := newBackend(cmd.Context(), c)
	if err != nil {
		return err
	}
	engine, err := stream.NewEngine(newRegistry(), wire.DashScope{}, pacing)
	if err != nil {
		return err
	}
	defer engine.Close()

	sender := chat.NewSender(engine, backend)
	defer sender.Close()

	if chatRecord != "" {
		f, err := os.Create(chatRecord)
		if err != nil {
			return fmt.Errorf("create recording: %w", err)
		}
		defer f.Close()
		rec, err := trace.NewRecorder(f, stream.ChannelChat)
		if err != nil {
			return err
		}
		sender.Tap(rec.Tap)
		defer func() {
			if err := rec.Err(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: recording incomplete: %v\n", err)
			}
		}()
	}

	slogContext(c, pacing)
	out := cli.NewStreamRenderer(os.Stdout, stdoutStyles())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	if len(args) == 1 {
		return chatTurn(cmd.Context(), sender, out, args[0], sigs)
	}

	help := stderrStyles().Help
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	for {
		fmt.Fprint(os.Stderr, help.Render("> "))
		select {
		case <-sigs:
			fmt.Fprintln(os.Stderr)
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			// Errors are shown by the renderer on the final chunk.
			chatTurn(cmd.Context(), sender, out, line, sigs)
		}
	}
}

// chatTurn sends one message and waits until its answer has been printed or
// the user interrupts it.
func chatTurn(ctx context.Context, sender *chat.Sender, out *cli.StreamRenderer, msg string, sigs <-chan os.Signal) error {
	start := time.Now()
	text0, reasoning0 := out.Counts()
	id, err := sender.Send(ctx, chat.Request{
		Message:      msg,
		DeepThinking: chatDeepThinking,
		WebSearch:    chatWebSearch,
	}, out)
	if err != nil {
		sender.Wait(ctx, id)
		return err
	}

	done := make(chan error, 1)
	go func() { done <- sender.Wait(ctx, id) }()
	select {
	case err = <-done:
	case <-sigs:
		sender.Cancel(id)
		err = <-done
		fmt.Fprintln(os.Stdout)
	}

	text, reasoning := out.Counts()
	slogTurn(id, time.Since(start), text-text0, reasoning-reasoning0)
	return err
}
