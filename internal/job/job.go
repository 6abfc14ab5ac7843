// Package job runs one reporting invocation: gate on the trading calendar,
// resolve the window, log in, fetch the basket and write every record.
package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shahid-2020/candlesheet/internal/batch"
	"github.com/shahid-2020/candlesheet/internal/calendar"
	"github.com/shahid-2020/candlesheet/internal/clock"
	"github.com/shahid-2020/candlesheet/internal/provider"
	"github.com/shahid-2020/candlesheet/internal/sink"
	"github.com/shahid-2020/candlesheet/internal/window"
	"github.com/shahid-2020/candlesheet/types"
)

const DefaultTimeout = 10 * time.Minute

type Status string

const (
	StatusSkippedHoliday  Status = "skipped-holiday"
	StatusSkippedWeekend  Status = "skipped-weekend"
	StatusSkippedNoWindow Status = "skipped-no-window"
	StatusFailed          Status = "failed"
	StatusCompleted       Status = "completed"
	StatusPartial         Status = "partial"
)

// Skipped reports whether the invocation stopped at the gate.
func (s Status) Skipped() bool {
	switch s {
	case StatusSkippedHoliday, StatusSkippedWeekend, StatusSkippedNoWindow:
		return true
	default:
		return false
	}
}

// Report describes one invocation. It is never shared between invocations.
type Report struct {
	RunID      string
	Status     Status
	Mode       window.Mode
	StartedAt  time.Time
	Duration   time.Duration
	Window     types.ResolvedWindow
	Records    []types.OHLCVRecord
	Summary    batch.Summary
	Written    int
	SinkErrors []*types.SinkError
	Err        error
}

type Job struct {
	Calendar    *calendar.Calendar
	Resolver    *window.Resolver
	Auth        provider.Authenticator
	Sources     provider.SourceFactory
	Sink        sink.Sink
	Basket      []types.Instrument
	Concurrency int
	Timeout     time.Duration
	Logger      logrus.FieldLogger
}

// Trigger runs one invocation under its own timeout. Only an authentication
// failure or the invocation deadline make it fail outright; per-instrument
// problems are collected in the report.
func (j *Job) Trigger(ctx context.Context) (report Report) {
	start := time.Now()
	now := j.now()
	report = Report{
		RunID:     uuid.NewString(),
		Mode:      j.mode(),
		StartedAt: now,
	}
	log := j.logger().WithFields(logrus.Fields{"run_id": report.RunID, "mode": report.Mode.String()})
	defer func() {
		report.Duration = time.Since(start)
	}()

	if !j.Calendar.Covers(now.Year()) {
		log.WithField("year", now.Year()).Warn("holiday list has no entries for this year")
	}
	if j.Calendar.IsHoliday(now) {
		log.Info("exchange holiday, skipping")
		report.Status = StatusSkippedHoliday
		return report
	}
	if calendar.IsWeekend(now) {
		log.Info("weekend, skipping")
		report.Status = StatusSkippedWeekend
		return report
	}

	w, err := window.ResolveAt(report.Mode, now)
	if errors.Is(err, window.ErrNoCompletedCandle) {
		log.Info("no completed candle yet, skipping")
		report.Status = StatusSkippedNoWindow
		return report
	}
	if err != nil {
		return j.fail(log, report, err)
	}
	report.Window = w
	log = log.WithFields(logrus.Fields{
		"from":   window.FormatQuery(w.From),
		"to":     window.FormatQuery(w.To),
		"target": window.FormatQuery(w.TargetStart),
	})

	timeout := j.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := j.Auth.Authenticate(ctx)
	if err != nil {
		var authErr *types.AuthError
		if !errors.As(err, &authErr) {
			err = &types.AuthError{Err: err}
		}
		return j.fail(log, report, err)
	}

	orchestrator := &batch.Orchestrator{
		Source:      j.Sources(session),
		Mode:        report.Mode,
		Interval:    types.IntervalOneHour,
		Concurrency: j.Concurrency,
		Logger:      log,
	}
	records, summary := orchestrator.Run(ctx, j.Basket, w)
	report.Records = records
	report.Summary = summary

	for _, rec := range records {
		if err := j.write(ctx, rec); err != nil {
			inst := types.Instrument{Symbol: rec.Symbol, Token: rec.InstrumentToken}
			sinkErr := &types.SinkError{Instrument: inst, Err: err}
			log.WithFields(logrus.Fields{"symbol": inst.Symbol, "token": inst.Token}).
				WithError(err).Error("write failed")
			report.SinkErrors = append(report.SinkErrors, sinkErr)
			continue
		}
		report.Written++
	}

	if err := ctx.Err(); err != nil && report.Written == 0 && len(records) > 0 {
		return j.fail(log, report, fmt.Errorf("invocation deadline: %w", err))
	}

	report.Status = StatusCompleted
	if len(summary.Failures) > 0 || len(report.SinkErrors) > 0 {
		report.Status = StatusPartial
	}
	log.WithFields(logrus.Fields{
		"status":    report.Status,
		"requested": summary.Requested,
		"fetched":   summary.Fetched,
		"gaps":      len(summary.Gaps),
		"failures":  len(summary.Failures),
		"written":   report.Written,
	}).Info("run finished")
	return report
}

func (j *Job) write(ctx context.Context, rec types.OHLCVRecord) error {
	dest, err := j.Sink.EnsureDestination(ctx, rec.Symbol)
	if err != nil {
		return err
	}
	return j.Sink.AppendOrInit(ctx, dest, rec)
}

func (j *Job) fail(log logrus.FieldLogger, report Report, err error) Report {
	log.WithError(err).Error("run failed")
	report.Status = StatusFailed
	report.Err = err
	return report
}

func (j *Job) now() time.Time {
	if j.Resolver != nil && j.Resolver.Now != nil {
		return j.Resolver.Now().In(clock.IST)
	}
	return clock.Now()
}

// mode falls back to MarketAligned when no Resolver is set.
func (j *Job) mode() window.Mode {
	if j.Resolver == nil {
		return window.MarketAligned
	}
	return j.Resolver.Mode
}

func (j *Job) logger() logrus.FieldLogger {
	if j.Logger == nil {
		return logrus.StandardLogger()
	}
	return j.Logger
}
