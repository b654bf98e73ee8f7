package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/pvs-monitor/cmd"
)

func main() {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "pvs-host",
			Usage:   "PVS supervisor host or IP",
			EnvVars: []string{"PVS_HOST"},
		},
		&cli.StringFlag{
			Name:    "pvs-serial",
			Usage:   "full supervisor serial; the credential derives from its last 5 characters",
			EnvVars: []string{"PVS_SERIAL"},
		},
		&cli.BoolFlag{
			Name:    "legacy-endpoint",
			Usage:   "use the deprecated unauthenticated dl_cgi endpoint",
			EnvVars: []string{"PVS_LEGACY_ENDPOINT"},
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Value:   10 * time.Second,
			EnvVars: []string{"PVS_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "output-dir",
			Value:   "pvs_output",
			EnvVars: []string{"OUTPUT_DIR"},
		},
		&cli.StringFlag{
			Name:    "state-dir",
			Value:   "pvs_output",
			EnvVars: []string{"STATE_DIR"},
		},
		&cli.BoolFlag{
			Name:    "archive-raw",
			Usage:   "archive each raw fetch body under <output-dir>/raw",
			EnvVars: []string{"ARCHIVE_RAW"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "optional Postgres sink",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "mqtt-broker",
			Usage:   "optional MQTT notification broker",
			EnvVars: []string{"MQTT_BROKER"},
		},
		&cli.StringFlag{
			Name:    "spreadsheet",
			Usage:   "optional xlsx workbook for daily summary rows",
			EnvVars: []string{"SPREADSHEET_PATH"},
		},
		&cli.IntFlag{
			Name:    "debounce-threshold",
			Value:   3,
			Usage:   "consecutive daytime error polls before an inverter anomaly is reportable",
			EnvVars: []string{"DEBOUNCE_THRESHOLD"},
		},
		&cli.StringFlag{
			Name:    "daylight-start",
			Value:   "07:00",
			EnvVars: []string{"DAYLIGHT_START"},
		},
		&cli.StringFlag{
			Name:    "daylight-end",
			Value:   "19:00",
			EnvVars: []string{"DAYLIGHT_END"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "INFO",
			EnvVars: []string{"LOG_LEVEL"},
		},
	}

	app := &cli.App{
		Name:   "pvs-monitor",
		Usage:  "poll a SunPower PVS6 supervisor, persist telemetry, raise anomalies",
		Flags:  flags,
		Action: cmd.PollCommand,
		Commands: []*cli.Command{
			{
				Name:   "poll",
				Usage:  "run one poll pass and exit (default)",
				Flags:  flags,
				Action: cmd.PollCommand,
			},
			{
				Name:   "summary",
				Usage:  "recompute and publish the current day's summary",
				Flags:  flags,
				Action: cmd.SummaryCommand,
			},
			{
				Name:   "status",
				Usage:  "fetch once and print inverter states",
				Flags:  flags,
				Action: cmd.StatusCommand,
			},
			{
				Name:   "serve",
				Usage:  "run the poll and summary passes on an in-process schedule",
				Flags:  flags,
				Action: cmd.ServeCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
