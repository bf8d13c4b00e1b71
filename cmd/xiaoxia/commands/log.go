package commands

import (
	"log/slog"
	"time"

	"github.com/derbi/xiaoxia/pkg/cli"
	"github.com/derbi/xiaoxia/pkg/stream"
)

func slogContext(c *cli.Context, pacing stream.Config) {
	slog.Debug("xiaoxia: using context",
		"context", c.Name,
		"backend", c.BackendName(),
		"interval", pacing.Interval,
		"chunk", pacing.ChunkSize,
		"priority", pacing.Priority)
}

func slogTurn(id stream.ID, elapsed time.Duration, text, reasoning int) {
	slog.Debug("xiaoxia: turn finished",
		"id", id,
		"elapsed", cli.FormatDuration(elapsed),
		"text_chars", text,
		"reasoning_chars", reasoning)
}
