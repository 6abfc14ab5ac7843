// Package scheduler fires the reporting job at cron points in IST.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/shahid-2020/candlesheet/internal/clock"
	"github.com/shahid-2020/candlesheet/internal/job"
)

// DefaultSpecs fire one minute after each market-aligned bar closes, plus a
// closing run shortly before the bell.
var DefaultSpecs = []string{"16 10-15 * * 1-5", "28 15 * * 1-5"}

type Triggerer interface {
	Trigger(ctx context.Context) job.Report
}

type Scheduler struct {
	cron      *cron.Cron
	schedules []cron.Schedule
	job       Triggerer
	log       logrus.FieldLogger
	ctx       context.Context
}

func New(specs []string, j Triggerer, logger logrus.FieldLogger) (*Scheduler, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if len(specs) == 0 {
		specs = DefaultSpecs
	}

	cl := cronLogger{log: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(clock.IST),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		job: j,
		log: logger,
		ctx: context.Background(),
	}

	for _, spec := range specs {
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
		}
		s.schedules = append(s.schedules, sched)
		s.cron.Schedule(sched, cron.FuncJob(s.run))
	}
	return s, nil
}

func (s *Scheduler) run() {
	report := s.job.Trigger(s.ctx)
	entry := s.log.WithFields(logrus.Fields{
		"run_id":   report.RunID,
		"status":   report.Status,
		"duration": report.Duration.String(),
	})
	if report.Err != nil {
		entry.WithError(report.Err).Error("scheduled run failed")
		return
	}
	entry.Info("scheduled run done")
}

// Start runs the schedule until ctx is cancelled, then waits for a job that
// is still running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	if next := s.NextRuns(clock.Now(), 1); len(next) > 0 {
		s.log.WithField("next_run", next[0].Format(time.RFC3339)).Info("scheduler started")
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

// NextRuns lists the next n fire times after from, in IST, merged across all
// specs.
func (s *Scheduler) NextRuns(from time.Time, n int) []time.Time {
	var out []time.Time
	for _, sched := range s.schedules {
		t := from.In(clock.IST)
		for i := 0; i < n; i++ {
			t = sched.Next(t)
			if t.IsZero() {
				break
			}
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func fields(kv []any) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
