package endpoint

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestDetector(threshold time.Duration, minLen int) (*Detector, *fakeClock) {
	d := NewDetector(Config{SilenceThreshold: threshold, MinAnswerLength: minLen})
	clk := newFakeClock()
	d.SetClock(clk.Now)
	return d, clk
}

func TestDetector_SubmitsAfterSilence(t *testing.T) {
	d, clk := newTestDetector(600*time.Millisecond, 10)

	answer := "I really enjoy systems engineering"
	d.Observe(answer)
	if d.State() != StateSpeaking {
		t.Fatalf("expected speaking, got %v", d.State())
	}
	// Not enough silence yet.
	clk.Advance(300 * time.Millisecond)
	if d.TrySubmit(len(answer)) {
		t.Fatalf("submitted before silence threshold")
	}
	clk.Advance(400 * time.Millisecond)
	if !d.TrySubmit(len(answer)) {
		t.Fatalf("expected submission after 0.7s of silence")
	}
	if d.State() != StateSubmitted {
		t.Fatalf("expected submitted, got %v", d.State())
	}
	// Endpoint fires at most once per question.
	if d.TrySubmit(len(answer)) {
		t.Fatalf("second submission for the same question")
	}
}

func TestDetector_ShortAnswerKeepsListening(t *testing.T) {
	d, clk := newTestDetector(600*time.Millisecond, 10)

	d.Observe("hello")
	clk.Advance(time.Second)
	if d.TrySubmit(5) {
		t.Fatalf("5-char answer must not submit")
	}
	if d.State() != StateSpeaking {
		t.Fatalf("expected to stay speaking, got %v", d.State())
	}
	// More speech for the same question is still accepted.
	d.Observe("hello there interviewer")
	clk.Advance(time.Second)
	if !d.TrySubmit(23) {
		t.Fatalf("expected submission once the answer grew past the minimum")
	}
}

func TestDetector_SpeechResetsSilenceWindow(t *testing.T) {
	d, clk := newTestDetector(600*time.Millisecond, 10)

	d.Observe("first part of the answer")
	clk.Advance(500 * time.Millisecond)
	d.Observe("second part")
	clk.Advance(500 * time.Millisecond)
	if d.TrySubmit(35) {
		t.Fatalf("silence window should have been reset by the second event")
	}
	clk.Advance(200 * time.Millisecond)
	if !d.TrySubmit(35) {
		t.Fatalf("expected submission 700ms after last speech")
	}
}

func TestDetector_ConcurrentCheckersOneWinner(t *testing.T) {
	for round := 0; round < 50; round++ {
		d, clk := newTestDetector(600*time.Millisecond, 10)
		d.Observe("a perfectly reasonable answer")
		clk.Advance(time.Second)

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if d.TrySubmit(29) {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		if got := atomic.LoadInt32(&wins); got != 1 {
			t.Fatalf("round %d: expected exactly one winner, got %d", round, got)
		}
	}
}

func TestDetector_ForceSharesGuardWithAuto(t *testing.T) {
	d, clk := newTestDetector(600*time.Millisecond, 10)
	d.Observe("manual submission answer")
	if !d.ForceSubmit(24) {
		t.Fatalf("expected manual submission to succeed")
	}
	clk.Advance(time.Second)
	if d.TrySubmit(24) {
		t.Fatalf("auto path must not double-submit after manual submission")
	}

	d2, _ := newTestDetector(600*time.Millisecond, 10)
	d2.Observe("short")
	if d2.ForceSubmit(5) {
		t.Fatalf("manual path must honor the minimum answer length")
	}
}

func TestDetector_ResetStartsNewCycle(t *testing.T) {
	d, clk := newTestDetector(600*time.Millisecond, 10)
	d.Observe("the first answer of the interview")
	clk.Advance(time.Second)
	if !d.TrySubmit(33) {
		t.Fatalf("expected first submission")
	}

	d.Reset()
	if d.State() != StateIdle {
		t.Fatalf("expected idle after reset, got %v", d.State())
	}
	d.Observe("the second answer of the interview")
	clk.Advance(time.Second)
	if !d.TrySubmit(34) {
		t.Fatalf("expected submission for the next question")
	}
}

func TestDetector_IgnoresEmptyAndLateText(t *testing.T) {
	d, clk := newTestDetector(600*time.Millisecond, 10)
	d.Observe("")
	if d.State() != StateIdle {
		t.Fatalf("empty text must not start speaking")
	}
	d.Observe("a complete answer to question one")
	clk.Advance(time.Second)
	if !d.TrySubmit(33) {
		t.Fatalf("expected submission")
	}
	before := d.LastSpeech()
	d.Observe("late recognizer output")
	if d.State() != StateSubmitted || !d.LastSpeech().Equal(before) {
		t.Fatalf("late text after submission must be dropped")
	}
}
