package tts

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

// DeepgramStreamer speaks questions and reactions onto the WebRTC voice track
// as linear16 PCM at 48kHz, chunk by chunk as the API produces them.
type DeepgramStreamer struct {
	apiKey     string
	model      string
	sampleRate int
}

// NewDeepgramStreamer builds a streamer. An empty model selects a default
// conversational voice.
func NewDeepgramStreamer(apiKey, model string) *DeepgramStreamer {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	return &DeepgramStreamer{apiKey: apiKey, model: model, sampleRate: 48000}
}

// StreamPCM48k opens a speak WebSocket and delivers 48kHz linear16 chunks on
// the returned channel. Both channels close when the stream ends; at most one
// error is sent. The stream is considered complete after a short idle window
// with no new audio, or at a hard deadline.
func (d *DeepgramStreamer) StreamPCM48k(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	pcmCh := make(chan []byte, 4096)
	errCh := make(chan error, 1)

	go func() {
		defer close(pcmCh)
		defer close(errCh)

		if d.apiKey == "" {
			errCh <- fmt.Errorf("deepgram: api key missing")
			return
		}
		if text == "" {
			return
		}

		options := &clientinterfaces.WSSpeakOptions{
			Model:      d.model,
			Encoding:   "linear16",
			SampleRate: d.sampleRate,
		}

		var lastRecvUnix int64
		var seenAudio int32
		cb := &speakSink{onBinary: func(data []byte) error {
			if len(data) == 0 {
				return nil
			}
			atomic.StoreInt64(&lastRecvUnix, time.Now().UnixNano())
			atomic.StoreInt32(&seenAudio, 1)
			chunk := make([]byte, len(data))
			copy(chunk, data)
			select {
			case pcmCh <- chunk:
			default:
			}
			return nil
		}}

		dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
		if err != nil {
			errCh <- fmt.Errorf("deepgram: create ws client: %w", err)
			return
		}

		stopped := false
		stop := func() {
			if !stopped {
				stopped = true
				dg.Stop()
			}
		}
		defer stop()

		if ok := dg.Connect(); !ok {
			errCh <- fmt.Errorf("deepgram: connect failed")
			return
		}

		if err := dg.SpeakWithText(text); err != nil {
			errCh <- fmt.Errorf("deepgram: speak text: %w", err)
			return
		}
		if err := dg.Flush(); err != nil {
			log.Printf("deepgram: flush error: %v", err)
		}

		idleWindow := 400 * time.Millisecond
		deadline := time.Now().Add(12 * time.Second)
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if atomic.LoadInt32(&seenAudio) == 1 {
					last := time.Unix(0, atomic.LoadInt64(&lastRecvUnix))
					if time.Since(last) > idleWindow {
						return
					}
				}
				if time.Now().After(deadline) {
					return
				}
			}
		}
	}()

	return pcmCh, errCh
}

type speakSink struct{ onBinary func([]byte) error }

func (s *speakSink) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakSink) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakSink) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakSink) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakSink) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakSink) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakSink) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (s *speakSink) UnhandledEvent([]byte) error                    { return nil }
func (s *speakSink) Binary(msg []byte) error {
	if s.onBinary != nil {
		return s.onBinary(msg)
	}
	return nil
}
