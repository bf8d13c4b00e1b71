package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/derbi/xiaoxia/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage xiaoxia configuration.

Configuration is stored in ~/.xiaoxia/config.yaml.
Multiple contexts can be defined for different backends or accounts.`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add or replace a context",
	Long: `Add a context. Adding a context that exists replaces it.

Examples:
  xiaoxia config add-context home --user-id u-123
  xiaoxia config add-context cloud --backend app --api-key sk-xxx --app-id xxx
  xiaoxia config add-context compat --backend openai --api-key sk-xxx \
    --base-url https://dashscope.aliyuncs.com/compatible-mode/v1 --model qwen-plus
  xiaoxia config add-context fast --speed fast --chunk medium`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		f := cmd.Flags()
		str := func(name string) string {
			v, _ := f.GetString(name)
			return v
		}
		ctx := &cli.Context{
			Backend:     str("backend"),
			BaseURL:     str("base-url"),
			UserID:      str("user-id"),
			APIKey:      str("api-key"),
			Workspace:   str("workspace"),
			RealtimeURL: str("realtime-url"),
			AppID:       str("app-id"),
			Model:       str("model"),
			Voice:       str("voice"),
		}
		if pacingSpeed != "" || pacingChunk != "" || pacingPriority != "" {
			ctx.Pacing = &cli.Pacing{Speed: pacingSpeed, Chunk: pacingChunk, Priority: pacingPriority}
		}
		if err := cfg.AddContext(args[0], ctx); err != nil {
			return err
		}
		cli.PrintSuccess(os.Stdout, "Context '%s' saved", args[0])
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess(os.Stdout, "Context '%s' deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess(os.Stdout, "Switched to context '%s'", args[0])
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}
		for _, name := range names {
			marker := "  "
			if name == cfg.CurrentContext {
				marker = "* "
			}
			fmt.Printf("%s%s (%s)\n", marker, name, cfg.Contexts[name].BackendName())
		}
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the configuration with API keys masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		return cli.Output(os.Stdout, cfg.Redacted(), outputFormat())
	},
}

func init() {
	f := configAddContextCmd.Flags()
	f.String("backend", "", "chat backend: http (default), app or openai")
	f.StringP("base-url", "u", "", "chat endpoint for the http and openai backends")
	f.String("user-id", "", "user ID sent to the http backend")
	f.StringP("api-key", "k", "", "DashScope or OpenAI-compatible API key")
	f.StringP("workspace", "w", "", "DashScope workspace ID")
	f.String("realtime-url", "", "DashScope realtime WebSocket endpoint")
	f.String("app-id", "", "DashScope application ID for the app backend")
	f.String("model", "", "model for the openai backend")
	f.String("voice", "", "default speech synthesis voice")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
