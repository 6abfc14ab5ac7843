package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"google.golang.org/api/option"

	"github.com/shahid-2020/candlesheet/internal/calendar"
	"github.com/shahid-2020/candlesheet/internal/clock"
	"github.com/shahid-2020/candlesheet/internal/config"
	"github.com/shahid-2020/candlesheet/internal/job"
	"github.com/shahid-2020/candlesheet/internal/provider"
	"github.com/shahid-2020/candlesheet/internal/provider/smartapi"
	"github.com/shahid-2020/candlesheet/internal/provider/yahoo"
	"github.com/shahid-2020/candlesheet/internal/scheduler"
	"github.com/shahid-2020/candlesheet/internal/sink"
	"github.com/shahid-2020/candlesheet/internal/sink/sheets"
	"github.com/shahid-2020/candlesheet/internal/window"
	"github.com/shahid-2020/candlesheet/marketdata"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logrus.WithError(err).Error("candlesheet exited")
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "candlesheet",
		Usage: "append hourly NSE candles to a Google spreadsheet",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "path to the YAML config file",
				EnvVars: []string{"CANDLESHEET_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run on the configured schedule until interrupted",
				Action: runScheduled,
			},
			{
				Name:  "once",
				Usage: "run a single invocation now",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "fetch and log records without writing them"},
				},
				Action: runOnce,
			},
			{
				Name:   "reset",
				Usage:  "delete every symbol tab and clear the first sheet",
				Action: resetSheets,
			},
		},
	}
}

func runScheduled(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	j, err := buildJob(c.Context, cfg, log, false)
	if err != nil {
		return err
	}
	s, err := scheduler.New(cfg.Schedule, j, log)
	if err != nil {
		return err
	}
	log.WithField("mode", cfg.Mode.String()).Info("scheduler starting")
	return s.Start(c.Context)
}

func runOnce(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	j, err := buildJob(c.Context, cfg, log, c.Bool("dry-run"))
	if err != nil {
		return err
	}
	report := j.Trigger(c.Context)
	if report.Status == job.StatusFailed {
		return cli.Exit(fmt.Sprintf("run %s failed: %v", report.RunID, report.Err), 1)
	}
	return nil
}

func resetSheets(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	if err := cfg.RequireSheets(); err != nil {
		return err
	}
	s, err := sheets.New(c.Context, sheets.Config{SpreadsheetID: cfg.Sheets.SpreadsheetID, Logger: log}, option.WithCredentialsFile(cfg.Sheets.CredentialsFile))
	if err != nil {
		return err
	}
	return s.Reset(c.Context)
}

func setup(c *cli.Context) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetLevel(level)
	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log, nil
}

func buildJob(ctx context.Context, cfg *config.Config, log *logrus.Logger, dryRun bool) (*job.Job, error) {
	holidays, err := cfg.HolidayDates()
	if err != nil {
		return nil, err
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, err
	}

	client := smartapi.NewClient(smartapi.Config{
		BaseURL:     cfg.SmartAPI.BaseURL,
		Credentials: creds,
		Logger:      log,
	})

	var fallback provider.CandleSource
	if cfg.Yahoo.Enabled {
		fallback = yahoo.NewYahooProvider(yahoo.Config{
			BaseURL: cfg.Yahoo.BaseURL,
			Symbols: yahoo.SymbolsFromBasket(cfg.Basket),
			Logger:  log,
		})
	}

	out := sink.Discard
	if !dryRun {
		if err := cfg.RequireSheets(); err != nil {
			return nil, err
		}
		s, err := sheets.New(ctx, sheets.Config{SpreadsheetID: cfg.Sheets.SpreadsheetID, Logger: log}, option.WithCredentialsFile(cfg.Sheets.CredentialsFile))
		if err != nil {
			return nil, err
		}
		out = s
	}

	return &job.Job{
		Calendar:    calendar.New(holidays),
		Resolver:    window.NewResolver(cfg.Mode, clock.Now),
		Auth:        client,
		Sources:     marketdata.WithFallback(client.Source, fallback, log),
		Sink:        out,
		Basket:      cfg.Basket,
		Concurrency: cfg.Batch.Concurrency,
		Timeout:     cfg.Timeout,
		Logger:      log,
	}, nil
}
