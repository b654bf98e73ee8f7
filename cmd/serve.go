package cmd

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/pvs-monitor/internal/pkg/contxt"
)

// ServeCommand runs the monitor as a long-lived process: the poll pass on the
// configured cron cadence (default every 15 minutes) and the daily summary
// shortly after midnight. Each pass is still run-to-completion over the
// persisted state, so serve mode and cron-driven one-shot mode can be mixed.
func ServeCommand(ctx *cli.Context) error {
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

	runCtx, stop := contxt.WithShutdown(ctx.Context)
	defer stop()

	p, err := newPipeline(runCtx, cfg)
	if err != nil {
		return exitErr(err)
	}
	defer p.close()

	eg, egCtx := errgroup.WithContext(runCtx)

	c := cron.New()
	if _, err := c.AddFunc(cfg.Monitor.PollSchedule, func() {
		if err := p.poll(runCtx); err != nil {
			zap.L().Error("poll pass failed", zap.Error(err))
		}
	}); err != nil {
		return exitErr(err)
	}
	if _, err := c.AddFunc(cfg.Monitor.SummarySchedule, func() {
		if _, err := p.summary(runCtx); err != nil {
			zap.L().Error("summary pass failed", zap.Error(err))
		}
	}); err != nil {
		return exitErr(err)
	}

	// first pass immediately rather than waiting out the schedule
	if err := p.poll(egCtx); err != nil {
		zap.L().Error("initial poll pass failed", zap.Error(err))
	}

	c.Start()
	eg.Go(func() error {
		<-egCtx.Done()
		// Stop's context drains: an in-flight pass finishes its state write
		<-c.Stop().Done()
		return egCtx.Err()
	})

	logger.Info("serve mode started",
		zap.String("poll_schedule", cfg.Monitor.PollSchedule),
		zap.String("summary_schedule", cfg.Monitor.SummarySchedule))

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return exitErr(err)
	}
	logger.Info("serve mode stopped")
	return nil
}
