package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RegisterAndTasks(t *testing.T) {
	s := New(time.Second)

	s.Register("presence-sweep", time.Minute, func(context.Context) error { return nil })
	s.Register("reconcile", time.Hour, func(context.Context) error { return nil })

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "presence-sweep", tasks[0].Name)
	assert.Equal(t, "1h0m0s", tasks[1].Interval)
}

func TestScheduler_Tick(t *testing.T) {
	s := New(time.Second)

	var count int
	s.Register("counter", time.Hour, func(context.Context) error {
		count++
		return nil
	})

	// 아직 실행 시각 전
	s.tick(time.Now())
	assert.Equal(t, 0, count)

	s.tick(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 1, count)

	tasks := s.Tasks()
	assert.Equal(t, int64(1), tasks[0].RunCount)
	assert.Nil(t, tasks[0].LastError)
}

func TestScheduler_TickRecordsErrorAndPanic(t *testing.T) {
	s := New(time.Second)

	s.Register("failing", time.Millisecond, func(context.Context) error {
		return errors.New("db down")
	})
	s.Register("panicking", time.Millisecond, func(context.Context) error {
		panic("boom")
	})

	s.tick(time.Now().Add(time.Second))

	tasks := s.Tasks()
	require.NotNil(t, tasks[0].LastError)
	assert.Equal(t, "db down", *tasks[0].LastError)
	require.NotNil(t, tasks[1].LastError)
	assert.Contains(t, *tasks[1].LastError, "boom")
	assert.Equal(t, int64(1), tasks[1].RunCount)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(5 * time.Millisecond)

	var runs atomic.Int64
	s.Register("fast", time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start()
	s.Start() // 중복 시작은 무시
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}
