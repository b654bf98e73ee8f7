package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/anicoll/pvs-monitor/internal/pkg/contxt"
	"github.com/anicoll/pvs-monitor/internal/pkg/extract"
	"github.com/anicoll/pvs-monitor/internal/pkg/model"
	"github.com/anicoll/pvs-monitor/internal/pkg/publisher"
	"github.com/anicoll/pvs-monitor/internal/pkg/pvs"
	"github.com/anicoll/pvs-monitor/internal/pkg/statestore"
)

// PollCommand runs one full pass: acquire session, fetch, extract, classify,
// aggregate, write sinks, persist state, exit.
func PollCommand(ctx *cli.Context) error {
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

	if err := p.poll(ctx.Context); err != nil {
		return exitErr(err)
	}
	return nil
}

// poll is one run-to-completion pass. Fetch-level failures abort the pass but
// still persist the outcome streaks; unreachable is an expected condition and
// exits clean.
func (p *pipeline) poll(ctx context.Context) error {
	st, err := statestore.Load(p.cfg.Sinks.StateDir)
	if err != nil {
		return err
	}

	passCtx, cancel := contxt.WithPassTimeout(ctx, fetchTimeout(p.cfg))
	defer cancel()

	fetchedAt := time.Now()
	payload, body, err := p.fetch(passCtx)
	if err != nil {
		return p.recordFailedPass(ctx, err, fetchedAt, st)
	}

	snap := extract.Snapshot(payload, fetchedAt)
	if err := p.csv.ArchiveRaw(body, fetchedAt); err != nil {
		p.logger.Warn("raw archive failed", zap.Error(err))
	}

	rep := p.classifier.Classify(snap, st)
	result := p.aggregator.Fold(snap, rep, st)

	if err := publisher.PublishSnapshot(ctx, snap); err != nil {
		return err
	}
	publisher.NotifyAnomalies(ctx, result.NewAnomalies)

	if result.Finalized != nil {
		if err := publisher.PublishSummary(ctx, *result.Finalized); err != nil {
			return err
		}
		publisher.NotifySummary(ctx, *result.Finalized)
	}

	if err := statestore.Save(p.cfg.Sinks.StateDir, st); err != nil {
		return err
	}

	p.logger.Info("poll pass complete",
		zap.Int("devices", len(snap.Records)),
		zap.Int("inverters", len(snap.Inverters())),
		zap.String("outcome", string(snap.Outcome)),
		zap.Int("new_anomalies", len(result.NewAnomalies)))
	return nil
}

// recordFailedPass persists the failure streaks, raises the system anomaly
// when due, and decides the exit: unreachable is expected (clean exit), the
// other kinds surface as a failed pass.
func (p *pipeline) recordFailedPass(ctx context.Context, fetchErr error, fetchedAt time.Time, st *statestore.State) error {
	var fe *pvs.FetchError
	if !errors.As(fetchErr, &fe) {
		// auth failures leave state untouched; the next scheduled
		// invocation retries
		return fetchErr
	}

	anomaly := p.classifier.RecordFetchFailure(fe.Kind, fetchedAt, st)
	result := p.aggregator.FoldFailure(fetchedAt, anomaly, st)

	publisher.NotifyAnomalies(ctx, result.NewAnomalies)
	if result.Finalized != nil {
		if err := publisher.PublishSummary(ctx, *result.Finalized); err != nil {
			p.logger.Error("summary write failed during failed pass", zap.Error(err))
		} else {
			publisher.NotifySummary(ctx, *result.Finalized)
		}
	}

	if err := statestore.Save(p.cfg.Sinks.StateDir, st); err != nil {
		return err
	}

	if fe.Kind == pvs.FetchUnreachable {
		p.logger.Info("device unreachable, treating as expected", zap.Error(fe))
		return nil
	}
	return fetchErr
}

// summary recomputes and publishes the current day's summary from persisted
// baselines. Safe to re-run: sinks skip dates they already hold. Returns nil
// when no day state exists yet.
func (p *pipeline) summary(ctx context.Context) (*model.DailySummary, error) {
	st, err := statestore.Load(p.cfg.Sinks.StateDir)
	if err != nil {
		return nil, err
	}
	if st.Day == nil {
		p.logger.Info("no day state yet, nothing to summarize")
		return nil, nil
	}

	sum := p.aggregator.Summarize(st.Day)
	if err := publisher.PublishSummary(ctx, *sum); err != nil {
		return nil, err
	}
	publisher.NotifySummary(ctx, *sum)
	return sum, nil
}
