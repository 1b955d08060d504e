package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunDueHonorsIntervals(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	s := New(time.Second, nil)
	s.now = func() time.Time { return now }

	var fast, slow int
	s.Add(Job{Name: "fast", Interval: time.Minute, Fn: func() int { fast++; return 0 }})
	s.Add(Job{Name: "slow", Interval: 5 * time.Minute, Fn: func() int { slow++; return 1 }})
	s.Add(Job{Name: "invalid", Interval: 0, Fn: func() int { t.Error("zero-interval job ran"); return 0 }})

	if n := s.RunDue(); n != 0 {
		t.Errorf("%d jobs ran before their interval", n)
	}
	for i := 1; i <= 10; i++ {
		now = base.Add(time.Duration(i) * time.Minute)
		s.RunDue()
	}
	if fast != 10 || slow != 2 {
		t.Errorf("fast=%d slow=%d, want 10 and 2", fast, slow)
	}
}

func TestPanickingJobDoesNotStopOthers(t *testing.T) {
	now := time.Now()
	s := New(time.Second, nil)
	s.now = func() time.Time { return now }
	ran := false
	s.Add(Job{Name: "bad", Interval: time.Second, Fn: func() int { panic("boom") }})
	s.Add(Job{Name: "good", Interval: time.Second, Fn: func() int { ran = true; return 0 }})
	now = now.Add(time.Second)
	s.RunDue()
	if !ran {
		t.Error("job after a panicking job did not run")
	}
}

func TestStartStop(t *testing.T) {
	s := New(5*time.Millisecond, nil)
	var calls atomic.Int32
	s.Add(Job{Name: "tick", Interval: time.Millisecond, Fn: func() int { calls.Add(1); return 0 }})

	s.Start(context.Background())
	s.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Stop()
	if calls.Load() == 0 {
		t.Fatal("job never ran")
	}
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != after {
		t.Error("job ran after Stop")
	}
}
