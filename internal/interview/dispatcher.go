package interview

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

// FallbackReaction is spoken when reaction generation fails; the turn always
// completes.
const FallbackReaction = "That's interesting!"

// ReactionGenerator produces a short spoken reaction to an answer.
type ReactionGenerator interface {
	GenerateReaction(ctx context.Context, answer string) (string, error)
}

// CodeReviewer produces feedback for a code submission.
type CodeReviewer interface {
	ReviewCode(ctx context.Context, code string) (string, error)
}

// Synthesizer renders text to playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ReactionResult is the resolved reaction for one accepted answer.
type ReactionResult struct {
	QuestionNumber int
	Reaction       string
	Audio          []byte // nil when synthesis failed or is disabled
}

type reactionJob struct {
	seq      int
	ordinal  int
	question string
	answer   string
}

// ReactionDispatcher runs reaction generation and speech synthesis off the
// ingest path. Jobs carry snapshots of the question and answer text, never
// live session references, so a job can finish safely after its session is
// removed from the registry. Completions are delivered strictly in dispatch
// order even when tasks finish out of order: each worker parks its result in
// a sequence-indexed slot and only the next expected slot is released.
type ReactionDispatcher struct {
	gen     ReactionGenerator
	synth   Synthesizer
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    chan reactionJob
	results chan ReactionResult
	wg      sync.WaitGroup

	mu     sync.Mutex
	seq    int
	next   int
	parked map[int]ReactionResult
	closed bool

	// flushMu serializes releasing parked results so the send order onto
	// the results channel matches dispatch order.
	flushMu sync.Mutex
}

const reactionWorkers = 2

// NewReactionDispatcher starts the worker pool. capacity bounds the job queue;
// with at most one submission per question the queue can never overflow when
// capacity >= the question count.
func NewReactionDispatcher(gen ReactionGenerator, synth Synthesizer, capacity int) *ReactionDispatcher {
	if capacity < 4 {
		capacity = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &ReactionDispatcher{
		gen:     gen,
		synth:   synth,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(chan reactionJob, capacity),
		results: make(chan ReactionResult, capacity),
		parked:  make(map[int]ReactionResult),
	}
	for i := 0; i < reactionWorkers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Results delivers resolved reactions in submission order.
func (d *ReactionDispatcher) Results() <-chan ReactionResult { return d.results }

// Dispatch queues reaction work for one accepted answer. It returns false
// after Close.
func (d *ReactionDispatcher) Dispatch(ordinal int, question, answer string) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.seq++
	job := reactionJob{seq: d.seq, ordinal: ordinal, question: question, answer: answer}
	d.mu.Unlock()

	select {
	case d.jobs <- job:
		return true
	case <-d.ctx.Done():
		return false
	}
}

// Close stops accepting jobs, waits for in-flight work, and closes Results.
func (d *ReactionDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.jobs)
	d.wg.Wait()
	d.cancel()
	close(d.results)
}

func (d *ReactionDispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		res := d.run(job)
		d.deliver(job.seq, res)
	}
}

func (d *ReactionDispatcher) run(job reactionJob) ReactionResult {
	res := ReactionResult{QuestionNumber: job.ordinal, Reaction: FallbackReaction}

	if d.gen != nil {
		ctx, cancel := context.WithTimeout(d.ctx, 15*time.Second)
		reaction, err := d.gen.GenerateReaction(ctx, job.answer)
		cancel()
		if err != nil {
			log.Printf("reaction: question %d: %v", job.ordinal, err)
		} else if r := strings.TrimSpace(reaction); r != "" {
			res.Reaction = r
		}
	}

	if d.synth != nil {
		ctx, cancel := context.WithTimeout(d.ctx, 20*time.Second)
		audio, err := d.synth.Synthesize(ctx, res.Reaction)
		cancel()
		if err != nil {
			log.Printf("reaction tts: question %d: no audio available: %v", job.ordinal, err)
		} else {
			res.Audio = audio
		}
	}
	return res
}

// deliver parks the result and flushes every consecutive completed slot.
func (d *ReactionDispatcher) deliver(seq int, res ReactionResult) {
	d.mu.Lock()
	d.parked[seq] = res
	d.mu.Unlock()
	d.flush()
}

func (d *ReactionDispatcher) flush() {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()
	for {
		d.mu.Lock()
		r, ok := d.parked[d.next+1]
		if ok {
			delete(d.parked, d.next+1)
			d.next++
		}
		d.mu.Unlock()
		if !ok {
			return
		}
		select {
		case d.results <- r:
		case <-d.ctx.Done():
			return
		}
	}
}
