package rtc

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v3/pkg/media"
)

// sampleWriter is the track surface the pacer writes to; tests substitute a
// recorder.
type sampleWriter interface {
	WriteSample(media.Sample) error
}

// OpusPacedWriter encodes 48kHz mono PCM into 20ms Opus frames and writes
// them to the outgoing track at wall-clock pace, so synthesized speech plays
// at natural speed no matter how fast the TTS API delivers it.
type OpusPacedWriter struct {
	enc          *opus.Encoder
	track        sampleWriter
	frameSamples int
	frames       chan []byte
	stopCh       chan struct{}

	mu      sync.Mutex
	pcmBuf  []int16
	stopped bool
}

// NewOpusPacedWriter constructs a paced writer with 20ms frames at 48kHz mono.
func NewOpusPacedWriter(track sampleWriter) (*OpusPacedWriter, error) {
	enc, err := opus.NewEncoder(48000, 1, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	w := &OpusPacedWriter{
		enc:          enc,
		track:        track,
		frameSamples: 960, // 20ms at 48kHz
		frames:       make(chan []byte, 512),
		stopCh:       make(chan struct{}),
	}
	go w.pace()
	return w, nil
}

// WritePCM buffers 48kHz mono PCM16LE bytes and emits encoded frames.
func (w *OpusPacedWriter) WritePCM(pcm []byte) {
	if len(pcm) < 2 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	need := len(pcm) / 2
	start := len(w.pcmBuf)
	if cap(w.pcmBuf)-start < need {
		tmp := make([]int16, start, start+need+2048)
		copy(tmp, w.pcmBuf)
		w.pcmBuf = tmp
	}
	w.pcmBuf = w.pcmBuf[:start+need]
	for i := 0; i < need; i++ {
		w.pcmBuf[start+i] = int16(binary.LittleEndian.Uint16(pcm[2*i : 2*i+2]))
	}

	opusBuf := make([]byte, 4000)
	for len(w.pcmBuf) >= w.frameSamples {
		n, _ := w.enc.Encode(w.pcmBuf[:w.frameSamples], opusBuf)
		if n > 0 {
			pkt := make([]byte, n)
			copy(pkt, opusBuf[:n])
			w.push(pkt)
		}
		copy(w.pcmBuf, w.pcmBuf[w.frameSamples:])
		w.pcmBuf = w.pcmBuf[:len(w.pcmBuf)-w.frameSamples]
	}
}

// FlushTail zero-pads the remaining PCM to a full frame and appends ~200ms of
// silence so the clip does not end on a click.
func (w *OpusPacedWriter) FlushTail() {
	opusBuf := make([]byte, 4000)
	w.mu.Lock()
	if len(w.pcmBuf) > 0 {
		pad := make([]int16, w.frameSamples)
		copy(pad, w.pcmBuf)
		if n, _ := w.enc.Encode(pad, opusBuf); n > 0 {
			pkt := make([]byte, n)
			copy(pkt, opusBuf[:n])
			w.push(pkt)
		}
		w.pcmBuf = w.pcmBuf[:0]
	}
	w.mu.Unlock()

	silence := make([]int16, w.frameSamples)
	for i := 0; i < 10; i++ {
		if n, _ := w.enc.Encode(silence, opusBuf); n > 0 {
			pkt := make([]byte, n)
			copy(pkt, opusBuf[:n])
			w.push(pkt)
		}
	}
}

// Reset drops buffered PCM and queued frames so new speech starts immediately.
func (w *OpusPacedWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		select {
		case <-w.frames:
		default:
			w.pcmBuf = w.pcmBuf[:0]
			return
		}
	}
}

// Close stops the pacer.
func (w *OpusPacedWriter) Close() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.stopCh)
	}
	w.mu.Unlock()
}

func (w *OpusPacedWriter) pace() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			select {
			case frame := <-w.frames:
				_ = w.track.WriteSample(media.Sample{Data: frame, Duration: 20 * time.Millisecond})
			default:
			}
		}
	}
}

func (w *OpusPacedWriter) push(pkt []byte) {
	select {
	case <-w.stopCh:
	case w.frames <- pkt:
	}
}
