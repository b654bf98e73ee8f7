// Package cmd wires configuration, the device client, the classification
// pipeline and the sinks into the CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jackc/pgx/v5"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/anicoll/pvs-monitor/internal/pkg/config"
	"github.com/anicoll/pvs-monitor/internal/pkg/csvsink"
	"github.com/anicoll/pvs-monitor/internal/pkg/database"
	"github.com/anicoll/pvs-monitor/internal/pkg/health"
	"github.com/anicoll/pvs-monitor/internal/pkg/mqtt"
	"github.com/anicoll/pvs-monitor/internal/pkg/publisher"
	"github.com/anicoll/pvs-monitor/internal/pkg/pvs"
	"github.com/anicoll/pvs-monitor/internal/pkg/report"
	"github.com/anicoll/pvs-monitor/internal/pkg/sheet"
)

// loadConfig builds the config from the environment and lets CLI flags win.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if ctx.IsSet("pvs-host") {
		cfg.Device.Host = ctx.String("pvs-host")
	}
	if ctx.IsSet("pvs-serial") {
		cfg.Device.Serial = ctx.String("pvs-serial")
	}
	if ctx.IsSet("legacy-endpoint") {
		cfg.Device.LegacyEndpoint = ctx.Bool("legacy-endpoint")
	}
	if ctx.IsSet("timeout") {
		cfg.Device.Timeout = ctx.Duration("timeout")
	}
	if ctx.IsSet("output-dir") {
		cfg.Sinks.OutputDir = ctx.String("output-dir")
	}
	if ctx.IsSet("state-dir") {
		cfg.Sinks.StateDir = ctx.String("state-dir")
	}
	if ctx.IsSet("archive-raw") {
		cfg.Sinks.ArchiveRaw = ctx.Bool("archive-raw")
	}
	if ctx.IsSet("database-url") {
		cfg.Sinks.DatabaseURL = ctx.String("database-url")
	}
	if ctx.IsSet("mqtt-broker") {
		cfg.Sinks.MqttBroker = ctx.String("mqtt-broker")
	}
	if ctx.IsSet("spreadsheet") {
		cfg.Sinks.SpreadsheetPath = ctx.String("spreadsheet")
	}
	if ctx.IsSet("debounce-threshold") {
		cfg.Monitor.DebounceThreshold = ctx.Int("debounce-threshold")
	}
	if ctx.IsSet("daylight-start") {
		cfg.Monitor.DaylightStart = ctx.String("daylight-start")
	}
	if ctx.IsSet("daylight-end") {
		cfg.Monitor.DaylightEnd = ctx.String("daylight-end")
	}
	if ctx.IsSet("log-level") {
		cfg.LogLevel = ctx.String("log-level")
	}

	return cfg, cfg.Validate()
}

func setupLogger(level string) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()
	var err error
	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	logger := zap.Must(logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// pipeline holds the wired components for one process run. Serve mode reuses
// it across passes; the one-shot commands build it, run once, and exit.
type pipeline struct {
	cfg        *config.Config
	client     *pvs.Client
	classifier *health.Classifier
	aggregator *report.Aggregator
	csv        *csvsink.Sink
	logger     *zap.Logger

	// session reused across polls within one run; nil until first login and
	// after a reactive invalidation
	sess *pvs.Session

	cleanup []func()
}

func newPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	classifier, err := health.New(&cfg.Monitor)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:        cfg,
		client:     pvs.New(&cfg.Device),
		classifier: classifier,
		aggregator: report.New(&cfg.Monitor),
		logger:     zap.L(),
	}
	if err := p.registerSinks(ctx); err != nil {
		p.close()
		return nil, err
	}
	return p, nil
}

func (p *pipeline) registerSinks(ctx context.Context) error {
	csv, err := csvsink.New(p.cfg.Sinks.OutputDir, p.cfg.Sinks.ArchiveRaw)
	if err != nil {
		return err
	}
	p.csv = csv
	if err := publisher.RegisterPublisher("csv", csv, true); err != nil {
		return err
	}

	if err := publisher.RegisterNotifier("log", publisher.LogNotifier{}); err != nil {
		return err
	}

	if url := p.cfg.Sinks.DatabaseURL; url != "" {
		conn, err := pgx.Connect(ctx, url)
		if err != nil {
			// optional sink: a missing database never blocks the pass
			p.logger.Warn("postgres unavailable, continuing without it", zap.Error(err))
		} else {
			db, err := database.NewDatabase(ctx, conn)
			if err != nil {
				p.logger.Warn("postgres schema init failed, continuing without it", zap.Error(err))
				_ = conn.Close(ctx)
			} else {
				p.cleanup = append(p.cleanup, func() { _ = db.Close(context.Background()) })
				if err := publisher.RegisterPublisher("postgres", db, false); err != nil {
					return err
				}
			}
		}
	}

	if broker := p.cfg.Sinks.MqttBroker; broker != "" {
		opts := paho_mqtt.NewClientOptions().
			AddBroker(broker).
			SetClientID("pvs-monitor").
			SetUsername(p.cfg.Sinks.MqttUsername).
			SetPassword(p.cfg.Sinks.MqttPassword)
		client := paho_mqtt.NewClient(opts)
		notifier := mqtt.New(client, p.cfg.Sinks.MqttTopicPrefix)
		if err := notifier.Connect(); err != nil {
			p.logger.Warn("mqtt unavailable, continuing without it", zap.Error(err))
		} else {
			p.cleanup = append(p.cleanup, func() { client.Disconnect(250) })
			if err := publisher.RegisterNotifier("mqtt", notifier); err != nil {
				return err
			}
		}
	}

	if path := p.cfg.Sinks.SpreadsheetPath; path != "" {
		if err := publisher.RegisterPublisher("spreadsheet", sheet.New(path), false); err != nil {
			return err
		}
	}
	return nil
}

func (p *pipeline) close() {
	for _, fn := range p.cleanup {
		fn()
	}
}

// fetch acquires a session when needed and performs one fetch, with the
// single reactive re-login the session contract allows.
func (p *pipeline) fetch(ctx context.Context) (*pvs.RawPayload, []byte, error) {
	if p.cfg.Device.LegacyEndpoint {
		return p.client.Fetch(ctx, nil)
	}

	if p.sess == nil {
		sess, err := p.client.Login(ctx)
		if err != nil {
			return nil, nil, err
		}
		p.sess = sess
	}

	payload, body, err := p.client.Fetch(ctx, p.sess)
	if errors.Is(err, pvs.ErrSessionExpired) {
		p.logger.Info("session stale, re-authenticating")
		p.sess = nil
		sess, lerr := p.client.Login(ctx)
		if lerr != nil {
			return nil, nil, lerr
		}
		p.sess = sess
		payload, body, err = p.client.Fetch(ctx, p.sess)
	}
	return payload, body, err
}

func fetchTimeout(cfg *config.Config) time.Duration {
	// the whole pass is bounded; leave headroom over the per-request timeout
	return cfg.Device.Timeout*3 + 5*time.Second
}

func exitErr(err error) error {
	return cli.Exit(fmt.Sprintf("pvs-monitor: %v", err), 1)
}
