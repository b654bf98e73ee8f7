package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/pvs-monitor/internal/pkg/extract"
	"github.com/anicoll/pvs-monitor/internal/pkg/pvs"
)

// StatusCommand performs one fetch and prints each inverter's description and
// state. No sinks, no state changes; a quick health peek.
func StatusCommand(ctx *cli.Context) error {
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

	fetchCtx, cancel := context.WithTimeout(ctx.Context, fetchTimeout(cfg))
	defer cancel()

	client := pvs.New(&cfg.Device)
	var sess *pvs.Session
	if !cfg.Device.LegacyEndpoint {
		if sess, err = client.Login(fetchCtx); err != nil {
			return exitErr(err)
		}
	}

	payload, _, err := client.Fetch(fetchCtx, sess)
	if err != nil {
		return exitErr(err)
	}

	snap := extract.Snapshot(payload, time.Now())
	inverters := snap.Inverters()
	if len(inverters) == 0 {
		fmt.Println("no inverters found in response")
		return nil
	}

	fmt.Printf("found %d inverters:\n", len(inverters))
	for i, rec := range inverters {
		label := rec.Description
		if label == "" {
			label = rec.Serial
		}
		fmt.Printf("%2d. %s: %s (%.3f kW, %.1f kWh lifetime)\n",
			i+1, label, rec.State, rec.PowerKw, rec.LifetimeKwh)
	}
	return nil
}
