package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/derbi/xiaoxia/pkg/cli"
	"github.com/derbi/xiaoxia/pkg/dashscope"
	"github.com/derbi/xiaoxia/pkg/stream"
)

func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		return nil, errors.New("configuration not initialized")
	}
	return globalConfig, nil
}

// getContext returns the selected context. Without a configured context the
// http backend with its defaults is used, so chat works out of the box.
func getContext() (*cli.Context, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	ctx, err := cfg.ResolveContext(contextName)
	if errors.Is(err, cli.ErrNoContext) {
		return &cli.Context{Name: "default"}, nil
	}
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

// pacingConfig merges the context's pacing profile with the command line.
func pacingConfig(ctx *cli.Context) (stream.Config, error) {
	p := cli.Pacing{}
	if ctx.Pacing != nil {
		p = *ctx.Pacing
	}
	if pacingSpeed != "" {
		p.Speed = pacingSpeed
	}
	if pacingChunk != "" {
		p.Chunk = pacingChunk
	}
	if pacingPriority != "" {
		p.Priority = pacingPriority
	}
	return p.StreamConfig()
}

func newRegistry() *stream.Registry {
	return stream.NewRegistry(stream.WithMetrics(metrics))
}

func newDashScopeClient(ctx *cli.Context) (*dashscope.Client, error) {
	if ctx.APIKey == "" {
		return nil, fmt.Errorf("context %q has no api_key", ctx.Name)
	}
	var opts []dashscope.Option
	if ctx.Workspace != "" {
		opts = append(opts, dashscope.WithWorkspace(ctx.Workspace))
	}
	if ctx.RealtimeURL != "" {
		opts = append(opts, dashscope.WithBaseURL(ctx.RealtimeURL))
	}
	return dashscope.NewClient(ctx.APIKey, opts...), nil
}

func stdoutStyles() cli.Styles {
	return cli.NewStyles(os.Stdout, cli.DefaultTheme)
}

func stderrStyles() cli.Styles {
	return cli.NewStyles(os.Stderr, cli.DefaultTheme)
}

func outputFormat() cli.OutputFormat {
	if outputJSON {
		return cli.FormatJSON
	}
	return cli.FormatYAML
}
