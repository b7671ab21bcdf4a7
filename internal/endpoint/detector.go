package endpoint

import (
	"sync"
	"time"
)

// State is the endpoint detector's position in the per-question cycle
// idle -> speaking -> pendingSubmit -> submitted -> idle.
type State int

const (
	StateIdle State = iota
	StateSpeaking
	StatePendingSubmit
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StatePendingSubmit:
		return "pending_submit"
	case StateSubmitted:
		return "submitted"
	}
	return "unknown"
}

// Config holds the endpointing tunables. Both values are runtime
// configuration, not constants; observed deployments vary the threshold
// between 0.5s and 3s.
type Config struct {
	// SilenceThreshold is the inactivity window after the last non-empty
	// recognition event before an answer is considered complete.
	SilenceThreshold time.Duration
	// MinAnswerLength is the minimum accumulated final-text length for an
	// utterance to count as an answer at all. Shorter text plus silence is
	// treated as not-yet-an-answer, never as an empty answer.
	MinAnswerLength int
}

// Detector decides when the current answer is complete from elapsed silence
// plus accumulated transcript length. All transitions happen under one mutex,
// so the pendingSubmit -> submitted step acts as the submission guard: when
// the frame handler and the silence watcher race, exactly one of them wins.
type Detector struct {
	mu         sync.Mutex
	cfg        Config
	state      State
	lastSpeech time.Time
	now        func() time.Time
}

// NewDetector constructs a Detector in the idle state.
func NewDetector(cfg Config) *Detector {
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = 1500 * time.Millisecond
	}
	if cfg.MinAnswerLength <= 0 {
		cfg.MinAnswerLength = 10
	}
	return &Detector{cfg: cfg, now: time.Now}
}

// SetClock overrides the wall clock; tests drive silence deterministically.
func (d *Detector) SetClock(now func() time.Time) {
	d.mu.Lock()
	d.now = now
	d.mu.Unlock()
}

// Observe records a non-empty recognition event (partial or final) for the
// current question. Empty text is ignored entirely, so last-speech time only
// moves when the recognizer actually heard something.
func (d *Detector) Observe(text string) {
	if text == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case StateIdle:
		d.state = StateSpeaking
		d.lastSpeech = d.now()
	case StateSpeaking, StatePendingSubmit:
		d.state = StateSpeaking
		d.lastSpeech = d.now()
	case StateSubmitted:
		// Late recognizer output after submission is dropped; the transcript
		// for this question is already committed.
	}
}

// TrySubmit is the single transition function for the automatic path. It
// advances speaking -> pendingSubmit when the silence window has elapsed and
// the transcript is long enough, then immediately claims
// pendingSubmit -> submitted. It returns true for exactly one caller per
// question; every other concurrent checker observes submitted and backs off.
func (d *Detector) TrySubmit(transcriptLen int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateSpeaking && d.state != StatePendingSubmit {
		return false
	}
	if d.now().Sub(d.lastSpeech) < d.cfg.SilenceThreshold {
		return false
	}
	if transcriptLen < d.cfg.MinAnswerLength {
		// Short utterance: stay speaking and keep listening.
		d.state = StateSpeaking
		return false
	}
	d.state = StatePendingSubmit
	// CAS: this goroutine observed pendingSubmit first; claim it.
	d.state = StateSubmitted
	return true
}

// ForceSubmit is the manual submission path. It shares the same guard as
// TrySubmit (one submitted transition per question) but does not wait for the
// silence window.
func (d *Detector) ForceSubmit(transcriptLen int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateSpeaking && d.state != StatePendingSubmit {
		return false
	}
	if transcriptLen < d.cfg.MinAnswerLength {
		return false
	}
	d.state = StateSubmitted
	return true
}

// Reset returns the detector to idle when a new question begins.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.state = StateIdle
	d.lastSpeech = time.Time{}
	d.mu.Unlock()
}

// State reports the current state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// LastSpeech reports when the last non-empty recognition event arrived.
func (d *Detector) LastSpeech() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSpeech
}
