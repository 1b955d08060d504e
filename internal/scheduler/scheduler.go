package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
)

// Job is a periodic sweep. Fn returns how many items it reclaimed.
type Job struct {
	Name     string
	Interval time.Duration
	Fn       func() int
}

type scheduled struct {
	job  Job
	next time.Time
}

// Scheduler drives every registered job from a single ticker.
type Scheduler struct {
	mu         sync.Mutex
	jobs       []*scheduled
	resolution time.Duration
	log        logger.ILogger
	now        func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func New(resolution time.Duration, log logger.ILogger) *Scheduler {
	if resolution <= 0 {
		resolution = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{resolution: resolution, log: log, now: time.Now}
}

// Add registers a job; its first run is one interval from now.
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 || job.Fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &scheduled{job: job, next: s.now().Add(job.Interval)})
}

// Start runs the ticker loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.resolution)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.log.Debug("scheduler", "stopped", nil)
				return
			case <-ticker.C:
				s.RunDue()
			}
		}
	}()
}

// Stop cancels the loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunDue runs every job whose time has come and returns how many ran.
func (s *Scheduler) RunDue() int {
	now := s.now()
	s.mu.Lock()
	var due []Job
	for _, j := range s.jobs {
		if !now.Before(j.next) {
			due = append(due, j.job)
			j.next = now.Add(j.job.Interval)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.run(job)
	}
	return len(due)
}

func (s *Scheduler) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler", "job panicked", map[string]interface{}{"job": job.Name, "panic": r})
		}
	}()
	start := time.Now()
	n := job.Fn()
	if n > 0 {
		s.log.Debug("scheduler", "sweep finished", map[string]interface{}{
			"job":      job.Name,
			"removed":  n,
			"duration": time.Since(start).String(),
		})
	}
}
