// Command xiaoxia is a terminal client for the Xiaoxia assistant.
//
// Usage:
//
//	xiaoxia [flags] <command> [args]
//
// Commands:
//
//	chat     - streamed chat with reasoning, typewriter paced
//	speak    - synthesize text to raw PCM
//	listen   - transcribe raw PCM from stdin or a file
//	replay   - replay a recorded or scripted chat stream
//	config   - configuration management
//
// Configuration is stored in ~/.xiaoxia/config.yaml.
package main

import (
	"fmt"
	"os"

	"github.com/derbi/xiaoxia/cmd/xiaoxia/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
