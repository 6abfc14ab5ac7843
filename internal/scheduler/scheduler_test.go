package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shahid-2020/candlesheet/internal/clock"
	"github.com/shahid-2020/candlesheet/internal/job"
)

type mockJob struct {
	calls       atomic.Int32
	TriggerFunc func(ctx context.Context) job.Report
}

func (m *mockJob) Trigger(ctx context.Context) job.Report {
	m.calls.Add(1)
	if m.TriggerFunc != nil {
		return m.TriggerFunc(ctx)
	}
	return job.Report{RunID: "run", Status: job.StatusCompleted}
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New([]string{"61 * * * *"}, &mockJob{}, nil)
	assert.Error(t, err)
}

func TestNew_DefaultSpecs(t *testing.T) {
	s, err := New(nil, &mockJob{}, nil)
	require.NoError(t, err)
	assert.Len(t, s.schedules, len(DefaultSpecs))
}

func TestNextRuns_DefaultSpecsOnATradingDay(t *testing.T) {
	s, err := New(DefaultSpecs, &mockJob{}, nil)
	require.NoError(t, err)

	// Thursday 2 January 2025, 09:00 IST.
	runs := s.NextRuns(clock.Date(2025, time.January, 2, 9, 0), 7)

	want := []time.Time{
		clock.Date(2025, time.January, 2, 10, 16),
		clock.Date(2025, time.January, 2, 11, 16),
		clock.Date(2025, time.January, 2, 12, 16),
		clock.Date(2025, time.January, 2, 13, 16),
		clock.Date(2025, time.January, 2, 14, 16),
		clock.Date(2025, time.January, 2, 15, 16),
		clock.Date(2025, time.January, 2, 15, 28),
	}
	require.Len(t, runs, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(runs[i]), "run %d: want %s, got %s", i, want[i], runs[i])
	}
}

func TestNextRuns_SkipsWeekend(t *testing.T) {
	s, err := New(DefaultSpecs, &mockJob{}, nil)
	require.NoError(t, err)

	// Friday 3 January 2025 after the close.
	runs := s.NextRuns(clock.Date(2025, time.January, 3, 16, 0), 1)

	require.Len(t, runs, 1)
	assert.True(t, clock.Date(2025, time.January, 6, 10, 16).Equal(runs[0]))
}

func TestNextRuns_EvaluatedInIST(t *testing.T) {
	s, err := New([]string{"16 10 * * *"}, &mockJob{}, nil)
	require.NoError(t, err)

	// 04:00 UTC is 09:30 IST; 10:16 IST is 04:46 UTC.
	runs := s.NextRuns(time.Date(2025, time.January, 2, 4, 0, 0, 0, time.UTC), 1)

	require.Len(t, runs, 1)
	assert.True(t, time.Date(2025, time.January, 2, 4, 46, 0, 0, time.UTC).Equal(runs[0]))
}

func TestStart_RunsAndStopsOnCancel(t *testing.T) {
	j := &mockJob{}
	s, err := New([]string{"@every 1s"}, j, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
	assert.GreaterOrEqual(t, j.calls.Load(), int32(1))
}

func TestRun_LogsFailure(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	j := &mockJob{TriggerFunc: func(context.Context) job.Report {
		return job.Report{RunID: "r1", Status: job.StatusFailed, Err: errors.New("auth")}
	}}
	s, err := New(nil, j, logger)
	require.NoError(t, err)

	s.run()

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "r1", entry.Data["run_id"])
}

func TestCronLogger_Fields(t *testing.T) {
	f := fields([]any{"entry", 3, "now", "x", "dangling"})
	assert.Equal(t, logrus.Fields{"entry": 3, "now": "x"}, f)
}
