package interview

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/VanBaNguyen/SurveyCode/internal/asr"
	"github.com/VanBaNguyen/SurveyCode/internal/endpoint"
)

var (
	// ErrNoActiveQuestion is returned when frames or submissions arrive before
	// the first question was issued.
	ErrNoActiveQuestion = errors.New("interview: no active question")
	// ErrAnswerTooShort is returned by the manual submission path when the
	// accumulated transcript is below the minimum answer length.
	ErrAnswerTooShort = errors.New("interview: answer too short")
	// ErrAlreadySubmitted is returned when an answer for the current question
	// was already recorded.
	ErrAlreadySubmitted = errors.New("interview: answer already submitted")
	// ErrNoCode is returned for an empty code review submission.
	ErrNoCode = errors.New("interview: no code provided")
)

const codeReviewFallback = "Unable to generate feedback at this time."

// minFragmentChars filters one- and two-character recognizer fragments, which
// are nearly always noise ("a", "uh").
const minFragmentChars = 3

// Event types surfaced on the session event channel.
const (
	EventAutoSubmit = "auto_submit"
	EventReaction   = "reaction"
)

// Event is an asynchronous session notification for the transport layer:
// silence-triggered submissions and resolved reactions.
type Event struct {
	Type           string
	QuestionNumber int
	Answer         string
	Reaction       string
	HasAudio       bool
	Audio          []byte
}

// Options configures a Session.
type Options struct {
	ID         string
	Questions  []string
	Recognizer asr.Recognizer
	Endpoint   endpoint.Config
	Reactions  ReactionGenerator
	Reviewer   CodeReviewer
	Synth      Synthesizer
}

// Session is the per-interview state machine: question cursor, transcript
// accumulator, submission guard, response log and code-review record.
//
// Two locks: ingestMu serializes recognizer access (the recognizer is
// stateful and order-sensitive, so frames must be fed one at a time in
// arrival order), while mu guards session state. Transcript append,
// last-speech update and the submission check-and-set happen as one critical
// section per frame, so the frame handler and the silence watcher can never
// both record a Response for the same question.
type Session struct {
	id       string
	rec      asr.Recognizer
	detector *endpoint.Detector
	dispatch *ReactionDispatcher
	reviewer CodeReviewer

	ingestMu sync.Mutex

	mu         sync.Mutex
	questions  []string
	index      int // questions handed out; the current question's ordinal
	transcript string
	responses  []Response
	pending    int // dispatched reactions not yet resolved
	codeReview *CodeReview
	closed     bool

	events      chan Event
	stopWatcher chan struct{}
	watcherDone chan struct{}
	pumpDone    chan struct{}
	closeOnce   sync.Once
	now         func() time.Time
}

// watchInterval is how often the silence watcher re-checks the endpoint when
// no frames are arriving.
const watchInterval = 200 * time.Millisecond

// NewSession constructs and starts a Session. The caller owns Close.
func NewSession(opts Options) *Session {
	capacity := len(opts.Questions) + 4
	s := &Session{
		id:          opts.ID,
		rec:         opts.Recognizer,
		detector:    endpoint.NewDetector(opts.Endpoint),
		dispatch:    NewReactionDispatcher(opts.Reactions, opts.Synth, capacity),
		reviewer:    opts.Reviewer,
		questions:   opts.Questions,
		events:      make(chan Event, 2*capacity),
		stopWatcher: make(chan struct{}),
		watcherDone: make(chan struct{}),
		pumpDone:    make(chan struct{}),
		now:         time.Now,
	}
	go s.reactionPump()
	go s.silenceWatcher()
	return s
}

// setClock overrides the wall clock for tests.
func (s *Session) setClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	s.detector.SetClock(now)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Events delivers auto-submit and reaction notifications. The channel closes
// when the session closes.
func (s *Session) Events() <-chan Event { return s.events }

// Transcript returns the accumulated answer text for the current question.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.transcript)
}

// NextQuestion advances the cursor and resets the transcript and submission
// guard for the new question. Once the list is exhausted it keeps returning
// ok=false with no side effects.
func (s *Session) NextQuestion() (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.index >= len(s.questions) {
		return Question{}, false
	}
	s.index++
	s.transcript = ""
	s.detector.Reset()
	return Question{Number: s.index, Text: s.questions[s.index-1]}, true
}

// CurrentQuestion returns the question most recently issued.
func (s *Session) CurrentQuestion() (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == 0 {
		return Question{}, false
	}
	return Question{Number: s.index, Text: s.questions[s.index-1]}, true
}

// Ingest routes one normalized PCM frame through the recognizer and the
// endpoint detector. It returns the recognition result (nil when the frame
// was not processed) and an auto-submit event when this frame completed the
// answer. Recognizer errors drop the frame; ingestion continues.
func (s *Session) Ingest(frame []byte) (*asr.Result, *Event, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	s.mu.Lock()
	if s.closed || s.index == 0 {
		s.mu.Unlock()
		return nil, nil, nil
	}
	s.mu.Unlock()

	res, err := s.rec.Accept(frame)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, nil
	}
	if res.Text != "" {
		s.detector.Observe(res.Text)
	}
	if res.Final && len(res.Text) >= minFragmentChars {
		s.transcript += " " + res.Text
	}
	var ev *Event
	answer := strings.TrimSpace(s.transcript)
	if s.detector.TrySubmit(len(answer)) {
		e := s.recordSubmissionLocked(answer)
		ev = &e
	}
	s.mu.Unlock()
	return &res, ev, nil
}

// SubmitAnswer is the manual submission path. It shares the submission guard
// with the automatic silence path, so racing the watcher cannot record two
// Responses for one question.
func (s *Session) SubmitAnswer() (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == 0 {
		return Event{}, ErrNoActiveQuestion
	}
	if s.detector.State() == endpoint.StateSubmitted {
		return Event{}, ErrAlreadySubmitted
	}
	answer := strings.TrimSpace(s.transcript)
	if !s.detector.ForceSubmit(len(answer)) {
		return Event{}, ErrAnswerTooShort
	}
	return s.recordSubmissionLocked(answer), nil
}

// recordSubmissionLocked commits the Response for the current question and
// hands a snapshot to the dispatcher. Callers hold s.mu and must have won the
// submission guard. The transcript is cleared here, exactly once per
// submission.
func (s *Session) recordSubmissionLocked(answer string) Event {
	ordinal := s.index
	question := s.questions[ordinal-1]
	s.responses = append(s.responses, Response{
		QuestionNumber: ordinal,
		Question:       question,
		Answer:         answer,
	})
	s.transcript = ""
	s.pending++
	s.dispatch.Dispatch(ordinal, question, answer)
	return Event{Type: EventAutoSubmit, QuestionNumber: ordinal, Answer: answer}
}

// SubmitCode sends a code submission for review and stores the feedback
// record. Review failure falls back to a fixed message; the record is stored
// either way.
func (s *Session) SubmitCode(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", ErrNoCode
	}
	feedback := codeReviewFallback
	if s.reviewer != nil {
		reviewCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		fb, err := s.reviewer.ReviewCode(reviewCtx, code)
		cancel()
		if err != nil {
			log.Printf("[%s] code review error: %v", s.id, err)
		} else if fb = strings.TrimSpace(fb); fb != "" {
			feedback = fb
		}
	}
	s.mu.Lock()
	s.codeReview = &CodeReview{CodeSource: "web_submission", Code: code, Feedback: feedback}
	s.mu.Unlock()
	return feedback, nil
}

// Flush waits until every dispatched reaction has resolved, so an export
// never carries placeholder reactions.
func (s *Session) Flush(ctx context.Context) error {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		n := s.pending
		s.mu.Unlock()
		if n == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Export snapshots the interview into its persisted record shape.
func (s *Session) Export() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	responses := make([]Response, len(s.responses))
	copy(responses, s.responses)
	var review *CodeReview
	if s.codeReview != nil {
		c := *s.codeReview
		review = &c
	}
	return Record{
		Timestamp:      s.now().Format("2006-01-02 15:04:05"),
		TotalQuestions: len(responses),
		Responses:      responses,
		CodeReview:     review,
	}
}

// Close stops the watcher, drains in-flight reaction work, and releases the
// recognizer. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.stopWatcher)
		<-s.watcherDone
		s.dispatch.Close()
		<-s.pumpDone
		close(s.events)

		s.ingestMu.Lock()
		if s.rec != nil {
			_ = s.rec.Close()
		}
		s.ingestMu.Unlock()
	})
}

// silenceWatcher re-checks the endpoint on a timer so an answer followed by
// total silence (no further frames) still submits. It races the frame
// handler by design; the detector's guard lets only one of them win.
func (s *Session) silenceWatcher() {
	defer close(s.watcherDone)
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopWatcher:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.closed || s.index == 0 {
				s.mu.Unlock()
				continue
			}
			answer := strings.TrimSpace(s.transcript)
			if !s.detector.TrySubmit(len(answer)) {
				s.mu.Unlock()
				continue
			}
			ev := s.recordSubmissionLocked(answer)
			s.mu.Unlock()
			s.emit(ev)
		}
	}
}

// reactionPump joins dispatcher results back into the response log and
// surfaces them as events. A Response is complete only once its reaction has
// been filled in here.
func (s *Session) reactionPump() {
	defer close(s.pumpDone)
	for res := range s.dispatch.Results() {
		s.mu.Lock()
		for i := range s.responses {
			if s.responses[i].QuestionNumber == res.QuestionNumber {
				s.responses[i].AIReaction = res.Reaction
				break
			}
		}
		s.pending--
		s.mu.Unlock()
		s.emit(Event{
			Type:           EventReaction,
			QuestionNumber: res.QuestionNumber,
			Reaction:       res.Reaction,
			HasAudio:       len(res.Audio) > 0,
			Audio:          res.Audio,
		})
	}
}

// emit never blocks for long: the channel capacity covers the bounded event
// count per interview (at most one auto-submit and one reaction per
// question).
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		log.Printf("[%s] event buffer full, dropping %s event", s.id, ev.Type)
	}
}
