package backoff

import (
	"testing"
	"time"
)

func TestNewStrategyStartsReady(t *testing.T) {
	s := New(10*time.Millisecond, 1.0, time.Second)
	if !s.Ready() {
		t.Fatalf("a fresh Strategy should be immediately ready")
	}
}

func TestFailGrowsAndBlocksUntilElapsed(t *testing.T) {
	s := New(20*time.Millisecond, 1.0, time.Second)
	s.Fail()
	if s.Ready() {
		t.Fatalf("expected Ready to report false immediately after Fail")
	}
	time.Sleep(30 * time.Millisecond)
	if !s.Ready() {
		t.Fatalf("expected Ready to report true once the backoff window elapsed")
	}
}

func TestFailGrowthIsCapped(t *testing.T) {
	s := New(50*time.Millisecond, 1.0, 120*time.Millisecond)
	for i := 0; i < 10; i++ {
		s.Fail()
	}
	if s.duration > s.cap {
		t.Fatalf("backoff duration %v exceeded cap %v", s.duration, s.cap)
	}
}

func TestResetClearsBackoffWindow(t *testing.T) {
	s := New(time.Second, 1.0, time.Minute)
	s.Fail()
	if s.Ready() {
		t.Fatalf("expected Ready to be false right after Fail with a one second base")
	}
	s.Reset()
	if !s.Ready() {
		t.Fatalf("expected Ready to be true immediately after Reset")
	}
}
