package rtc

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3/pkg/media"
)

type captureTrack struct {
	mu      sync.Mutex
	samples []media.Sample
}

func (c *captureTrack) WriteSample(s media.Sample) error {
	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
	return nil
}

func (c *captureTrack) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

func TestOpusPacedWriter_PacesFrames(t *testing.T) {
	track := &captureTrack{}
	w, err := NewOpusPacedWriter(track)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer w.Close()

	// 3 full 20ms frames of silence at 48kHz mono.
	w.WritePCM(make([]byte, 960*2*3))

	deadline := time.Now().Add(500 * time.Millisecond)
	for track.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no samples written")
		}
		time.Sleep(10 * time.Millisecond)
	}
	track.mu.Lock()
	defer track.mu.Unlock()
	for i, s := range track.samples {
		if s.Duration != 20*time.Millisecond {
			t.Fatalf("sample %d duration %v", i, s.Duration)
		}
		if len(s.Data) == 0 {
			t.Fatalf("sample %d empty", i)
		}
	}
}

func TestOpusPacedWriter_FlushTailPadsPartialFrame(t *testing.T) {
	track := &captureTrack{}
	w, err := NewOpusPacedWriter(track)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer w.Close()

	w.WritePCM(make([]byte, 100)) // well under one frame
	w.FlushTail()

	deadline := time.Now().Add(time.Second)
	for track.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("flush produced no samples")
		}
		time.Sleep(10 * time.Millisecond)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pcmBuf) != 0 {
		t.Fatalf("pcm buffer not drained: %d samples left", len(w.pcmBuf))
	}
}

func TestOpusPacedWriter_ResetDropsBacklog(t *testing.T) {
	track := &captureTrack{}
	w, err := NewOpusPacedWriter(track)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer w.Close()

	w.WritePCM(make([]byte, 960*2*20))
	w.Reset()

	w.mu.Lock()
	buffered := len(w.pcmBuf)
	queued := len(w.frames)
	w.mu.Unlock()
	if buffered != 0 || queued != 0 {
		t.Fatalf("reset left buffered=%d queued=%d", buffered, queued)
	}
}

func TestOpusPacedWriter_CloseIsIdempotent(t *testing.T) {
	w, err := NewOpusPacedWriter(&captureTrack{})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	w.Close()
	w.Close()
	// writes after close must not block
	done := make(chan struct{})
	go func() {
		w.WritePCM(make([]byte, 960*2*600))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("WritePCM blocked after Close")
	}
}
