// Package tts renders interviewer speech: ElevenLabs for buffered MP3 clips
// delivered over the WebSocket, Deepgram for low-latency PCM streaming onto
// the WebRTC voice track.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// DefaultVoiceID is the interviewer voice.
const DefaultVoiceID = "hzLyDn3IrvrdH83BdqUu"

const elevenModel = "eleven_turbo_v2_5"

// ElevenLabsClient synthesizes MP3 audio over the HTTP text-to-speech API.
type ElevenLabsClient struct {
	apiKey  string
	voiceID string
	baseURL string
	http    *http.Client
}

// NewElevenLabsClient builds a client. An empty voiceID selects the default
// interviewer voice.
func NewElevenLabsClient(apiKey, voiceID string) *ElevenLabsClient {
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	return &ElevenLabsClient{
		apiKey:  apiKey,
		voiceID: voiceID,
		baseURL: "https://api.elevenlabs.io",
		http:    &http.Client{},
	}
}

// SetBaseURL redirects API calls, for tests.
func (e *ElevenLabsClient) SetBaseURL(base string) { e.baseURL = base }

// Synthesize renders text to a complete MP3 clip.
func (e *ElevenLabsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs: api key missing")
	}
	if text == "" {
		return nil, nil
	}

	base, err := url.Parse(e.baseURL)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: base url: %w", err)
	}
	u := *base
	u.Path = "/v1/text-to-speech/" + e.voiceID
	q := u.Query()
	q.Set("optimize_streaming_latency", "4")
	u.RawQuery = q.Encode()

	body := map[string]any{
		"model_id": elevenModel,
		"text":     text,
		"voice_settings": map[string]any{
			"stability":         0.4,
			"similarity_boost":  0.7,
			"style":             0.0,
			"use_speaker_boost": true,
		},
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("elevenlabs: status=%d body=%s", resp.StatusCode, string(b))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return audio, nil
}
