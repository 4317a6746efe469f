package reactor

import "testing"

func TestSchedulerFanOut(t *testing.T) {
	s := NewScheduler(0, 1)
	fired := 0
	for i := 0; i < 1000; i++ {
		if _, err := s.Arm(10, 1, func(TimerHandle) { fired++ }); err != nil {
			t.Fatalf("Arm: %v", err)
		}
	}
	s.Advance(10)
	if fired != 1000 {
		t.Fatalf("fired = %d, want 1000", fired)
	}
}

func TestSchedulerPeriodicCadence(t *testing.T) {
	s := NewScheduler(0, 1)
	fired := 0
	if _, err := s.Arm(5, 3, func(TimerHandle) { fired++ }); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	s.Advance(5)
	if fired != 1 {
		t.Fatalf("after tick 1: fired = %d, want 1", fired)
	}
	s.Advance(10)
	if fired != 2 {
		t.Fatalf("after tick 2: fired = %d, want 2", fired)
	}
	s.Advance(15)
	if fired != 3 {
		t.Fatalf("after tick 3: fired = %d, want 3", fired)
	}
	s.Advance(20)
	if fired != 3 {
		t.Fatalf("after exhausting repeats: fired = %d, want 3 (no further fires)", fired)
	}
}

func TestSchedulerCascade(t *testing.T) {
	s := NewScheduler(0, 1)
	fired := 0
	if _, err := s.Arm(300, 1, func(TimerHandle) { fired++ }); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	s.Advance(256)
	if fired != 0 {
		t.Fatalf("after advancing past the near-wheel wrap but before fire jiffy: fired = %d, want 0", fired)
	}
	s.Advance(300)
	if fired != 1 {
		t.Fatalf("after reaching fire jiffy: fired = %d, want 1", fired)
	}
	s.Advance(1000)
	if fired != 1 {
		t.Fatalf("one-shot refired after exhaustion: fired = %d, want 1", fired)
	}
}

func TestSchedulerFullWrapBoundary(t *testing.T) {
	s := NewScheduler(0, 1)
	const wrap = uint64(1) << 32
	// Position the scheduler just short of the 2^32 jiffy wrap before
	// arming, so the timer's bucketing reflects the pre-wrap state it will
	// actually cascade through.
	s.jiffies = ^uint32(0) - 5
	s.currentMs = wrap - 6
	s.epochMs = 0

	fired := 0
	if _, err := s.Arm(10, 1, func(TimerHandle) { fired++ }); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	s.Advance(wrap - 6 + 10)
	if fired != 1 {
		t.Fatalf("fired across jiffy wrap = %d, want 1", fired)
	}
}

func TestSchedulerCancelDuringFiring(t *testing.T) {
	s := NewScheduler(0, 1)
	var h TimerHandle
	fired := 0
	h, err := s.Arm(1, 0, func(self TimerHandle) {
		fired++
		if err := s.Cancel(self); err != nil {
			t.Fatalf("Cancel from within callback: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("Arm: %v", err)
	}
	s.Advance(1)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	s.Advance(100)
	if fired != 1 {
		t.Fatalf("timer refired after self-cancel: fired = %d, want 1", fired)
	}
	if _, err := s.State(h); err == nil {
		t.Fatalf("expected stale handle after self-cancel retirement")
	}
}

func TestSchedulerRearmReentrant(t *testing.T) {
	s := NewScheduler(0, 1)
	count := 0
	var h TimerHandle
	h, err := s.Arm(1, 1, func(self TimerHandle) {
		count++
		if count < 5 {
			if err := s.Rearm(self, 1, 1, nil); err != nil {
				t.Fatalf("Rearm: %v", err)
			}
		}
	})
	if err != nil {
		t.Fatalf("Arm: %v", err)
	}
	s.Advance(10)
	if count != 5 {
		t.Fatalf("count = %d, want 5", count)
	}
	_ = h
}

func TestSchedulerStaleHandle(t *testing.T) {
	s := NewScheduler(0, 1)
	h, err := s.Arm(1, 1, func(TimerHandle) {})
	if err != nil {
		t.Fatalf("Arm: %v", err)
	}
	s.Advance(1)
	if _, err := s.State(h); err == nil {
		t.Fatalf("expected ErrStaleHandle for a retired one-shot handle")
	}
}

func TestSchedulerNextFireMs(t *testing.T) {
	s := NewScheduler(0, 1)
	if _, ok := s.NextFireMs(); ok {
		t.Fatalf("NextFireMs on empty scheduler should report false")
	}
	if _, err := s.Arm(50, 1, func(TimerHandle) {}); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	ms, ok := s.NextFireMs()
	if !ok || ms != 50 {
		t.Fatalf("NextFireMs() = (%d, %v), want (50, true)", ms, ok)
	}
}

func TestBucketForNearFar(t *testing.T) {
	level, _ := bucketFor(10, 0)
	if level != -1 {
		t.Fatalf("delta within near wheel should bucket to level -1, got %d", level)
	}
	level, _ = bucketFor(nearSize+1, 0)
	if level != 0 {
		t.Fatalf("delta just past near wheel should bucket to far level 0, got %d", level)
	}
}
