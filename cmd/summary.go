package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
)

// SummaryCommand recomputes the current day's summary from the persisted
// baselines, publishes it to the sinks (duplicate dates are skipped) and
// prints it. Re-running it for the same day yields identical output.
func SummaryCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return exitErr(err)
	}
	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return exitErr(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	p, err := newPipeline(ctx.Context, cfg)
	if err != nil {
		return exitErr(err)
	}
	defer p.close()

	sum, err := p.summary(ctx.Context)
	if err != nil {
		return exitErr(err)
	}
	if sum == nil {
		return nil
	}

	out, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return exitErr(err)
	}
	fmt.Println(string(out))
	return nil
}
