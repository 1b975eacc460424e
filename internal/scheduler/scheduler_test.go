package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryRunsJob(t *testing.T) {
	s := New()
	var runs atomic.Int32

	require.NoError(t, s.Every("sweep", 50*time.Millisecond, func() error {
		runs.Add(1)
		return nil
	}))
	assert.Equal(t, []string{"sweep"}, s.Jobs())

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestEveryRejectsDuplicateTag(t *testing.T) {
	s := New()
	job := func() error { return nil }

	require.NoError(t, s.Every("sweep", time.Minute, job))
	assert.Error(t, s.Every("sweep", time.Minute, job))

	require.NoError(t, s.remove("sweep"))
	assert.Empty(t, s.Jobs())
}
