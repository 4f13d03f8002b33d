// Package scheduler runs periodic background jobs in-process
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkglogger "github.com/damoang/angple-forum/pkg/logger"
	"github.com/rs/zerolog"
)

// DefaultResolution is how often due tasks are checked
const DefaultResolution = time.Second

// Task 등록된 주기적 작업
type Task struct {
	Name      string
	Interval  time.Duration
	Handler   func(ctx context.Context) error
	LastRun   time.Time
	NextRun   time.Time
	RunCount  int64
	LastError error
}

// Scheduler 백그라운드 작업 스케줄러 (in-process)
type Scheduler struct {
	tasks      []*Task
	mu         sync.RWMutex
	log        zerolog.Logger
	resolution time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	started    bool
}

// New 스케줄러 생성. resolution <= 0 uses DefaultResolution.
func New(resolution time.Duration) *Scheduler {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:      make([]*Task, 0),
		log:        pkglogger.WithComponent("scheduler"),
		resolution: resolution,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Register 주기적 작업 등록. The first run happens one interval after registration.
func (s *Scheduler) Register(name string, interval time.Duration, handler func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &Task{
		Name:     name,
		Interval: interval,
		Handler:  handler,
		NextRun:  time.Now().Add(interval),
	})

	s.log.Info().Str("task", name).Dur("interval", interval).Msg("scheduled task registered")
}

// Start 스케줄러 시작 (백그라운드 goroutine)
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.resolution)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case now := <-ticker.C:
				s.tick(now)
			}
		}
	}()
	s.log.Info().Msg("scheduler started")
}

// Stop 스케줄러 중지. A running task sees its context cancelled and is waited for.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

// tick 실행 대상 작업 체크 및 실행
func (s *Scheduler) tick(now time.Time) {
	s.mu.RLock()
	due := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if !now.Before(task.NextRun) {
			due = append(due, task)
		}
	}
	s.mu.RUnlock()

	for _, task := range due {
		if s.ctx.Err() != nil {
			return
		}
		err := s.run(task)

		s.mu.Lock()
		task.LastError = err
		task.LastRun = now
		task.NextRun = now.Add(task.Interval)
		task.RunCount++
		s.mu.Unlock()
	}
}

// run executes one task, turning a panic into an error
func (s *Scheduler) run(task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			s.log.Error().Err(err).Str("task", task.Name).Msg("scheduled task failed")
		}
	}()

	start := time.Now()
	err = task.Handler(s.ctx)
	s.log.Debug().Str("task", task.Name).Dur("elapsed", time.Since(start)).Msg("scheduled task ran")
	return err
}

// Tasks 등록된 작업 목록 조회 (모니터링용)
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := TaskInfo{
			Name:     t.Name,
			Interval: t.Interval.String(),
			LastRun:  t.LastRun,
			NextRun:  t.NextRun,
			RunCount: t.RunCount,
		}
		if t.LastError != nil {
			errMsg := t.LastError.Error()
			info.LastError = &errMsg
		}
		result = append(result, info)
	}
	return result
}

// TaskInfo 작업 정보 (JSON 응답용)
type TaskInfo struct {
	Name      string    `json:"name"`
	Interval  string    `json:"interval"`
	LastRun   time.Time `json:"last_run"`
	NextRun   time.Time `json:"next_run"`
	RunCount  int64     `json:"run_count"`
	LastError *string   `json:"last_error,omitempty"`
}
