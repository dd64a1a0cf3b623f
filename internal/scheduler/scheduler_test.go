package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNowExecutesJob(t *testing.T) {
	s := New(zerolog.Nop())

	ran := false
	err := s.RunNow(JobFunc{JobName: "probe", Fn: func() error {
		ran = true
		return nil
	}})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRunNowPropagatesError(t *testing.T) {
	s := New(zerolog.Nop())

	boom := errors.New("boom")
	err := s.RunNow(JobFunc{JobName: "probe", Fn: func() error { return boom }})
	assert.ErrorIs(t, err, boom)
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("not a schedule", JobFunc{JobName: "probe", Fn: func() error { return nil }})
	assert.Error(t, err)
}

func TestScheduledJobRuns(t *testing.T) {
	s := New(zerolog.Nop())

	var runs atomic.Int64
	err := s.AddJob("@every 10ms", JobFunc{JobName: "ticker", Fn: func() error {
		runs.Add(1)
		return nil
	}})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Positive(t, runs.Load())
}

func TestJobFuncName(t *testing.T) {
	j := JobFunc{JobName: "cache_purge", Fn: func() error { return nil }}
	assert.Equal(t, "cache_purge", j.Name())
}
