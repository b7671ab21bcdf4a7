package tts

import (
	"context"
	"testing"
	"time"
)

func TestDeepgram_StreamPCM48k_NoKey(t *testing.T) {
	d := NewDeepgramStreamer("", "")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	pcmCh, errCh := d.StreamPCM48k(ctx, "hello")
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected error when api key missing")
		}
	case <-pcmCh:
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("timeout waiting for error")
	}
}

func TestDeepgram_EmptyTextClosesCleanly(t *testing.T) {
	d := NewDeepgramStreamer("key", "")
	pcmCh, errCh := d.StreamPCM48k(context.Background(), "")
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("empty text should not error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for close")
	}
	if _, ok := <-pcmCh; ok {
		t.Fatalf("expected closed pcm channel")
	}
}
