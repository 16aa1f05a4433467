package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsTimeframesInOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})

	s, err := NewScheduler(context.Background(), func(_ context.Context, runID, tf string) error {
		assert.NotEmpty(t, runID)
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, tf)
		if len(seen) == 2 {
			close(done)
		}
		return errors.New("failures are logged, not fatal")
	})
	require.NoError(t, err)

	job, err := s.Schedule("0 6 * * *", []string{"two_weeks", "one_year"})
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	next, err := job.NextRun()
	require.NoError(t, err)
	assert.Equal(t, 6, next.UTC().Hour())

	require.NoError(t, job.RunNow())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"two_weeks", "one_year"}, seen)
}

func TestScheduler_Validation(t *testing.T) {
	_, err := NewScheduler(context.Background(), nil)
	require.Error(t, err)

	s, err := NewScheduler(context.Background(), func(context.Context, string, string) error { return nil })
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	_, err = s.Schedule("not a cron", []string{"one_year"})
	require.Error(t, err)
	_, err = s.Schedule("0 6 * * *", nil)
	require.Error(t, err)
}
