package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/derbi/xiaoxia/pkg/cli"
	"github.com/derbi/xiaoxia/pkg/stream"
)

var (
	cfgFile     string
	contextName string
	outputJSON  bool
	verbose     bool
	metricsAddr string

	pacingSpeed    string
	pacingChunk    string
	pacingPriority string

	globalConfig *cli.Config
	promRegistry = prometheus.NewRegistry()
	metrics      = stream.NewMetrics(promRegistry)
)

var rootCmd = &cobra.Command{
	Use:   "xiaoxia",
	Short: "Xiaoxia assistant CLI",
	Long: `Xiaoxia CLI - chat, speech synthesis and speech recognition with
paced, typewriter-style output.

Configuration is stored in ~/.xiaoxia/config.yaml and supports multiple
contexts, similar to kubectl's context management.

Examples:
  # Set up a context for a DashScope application
  xiaoxia config add-context cloud --backend app --api-key sk-xxx --app-id xxx

  # Chat interactively, answers paced at the fast preset
  xiaoxia chat --speed fast

  # Record a turn and replay it later
  xiaoxia chat --record turn.trace "讲个故事"
  xiaoxia replay turn.trace`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if metricsAddr != "" {
			serveMetrics(metricsAddr)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	promRegistry.MustRegister(collectors.NewGoCollector())

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.xiaoxia/config.yaml)")
	pf.StringVarP(&contextName, "context", "c", "", "context name to use")
	pf.BoolVar(&outputJSON, "json", false, "output as JSON")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	pf.StringVar(&pacingSpeed, "speed", "", "pacing speed: slow, normal, fast or an interval (overrides the context)")
	pf.StringVar(&pacingChunk, "chunk", "", "pacing chunk: small, medium, large or a count (overrides the context)")
	pf.StringVar(&pacingPriority, "priority", "", "lane priority: reasoning-first or interleaved (overrides the context)")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(speakCmd)
	rootCmd.AddCommand(listenCmd)
}

func initConfig() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	var err error
	globalConfig, err = cli.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config: %v\n", err)
	}
}

func serveMetrics(addr string) {
	h := promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
	go func() {
		err := http.ListenAndServe(addr, h)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("xiaoxia: metrics server stopped", "addr", addr, "error", err)
		}
	}()
	slog.Debug("xiaoxia: serving metrics", "addr", addr)
}
