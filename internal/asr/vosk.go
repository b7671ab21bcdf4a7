package asr

import (
	"encoding/json"
	"fmt"
	"strings"

	vosk "github.com/alphacep/vosk-api/go"
)

// Model is the process-wide Vosk acoustic model. Loading is expensive (the
// model directory is hundreds of MB) and happens once at startup; a load
// failure aborts the process.
type Model struct {
	model *vosk.VoskModel
}

// LoadModel loads the Vosk model from dir.
func LoadModel(dir string) (*Model, error) {
	m, err := vosk.NewModel(dir)
	if err != nil {
		return nil, fmt.Errorf("vosk: load model from %q: %w", dir, err)
	}
	return &Model{model: m}, nil
}

// NewRecognizer creates a fresh recognizer over the shared model. Each session
// gets its own recognizer instance.
func (m *Model) NewRecognizer() (Recognizer, error) {
	rec, err := vosk.NewRecognizer(m.model, 16000)
	if err != nil {
		return nil, fmt.Errorf("vosk: new recognizer: %w", err)
	}
	rec.SetWords(1)
	return &voskRecognizer{rec: rec}, nil
}

// Free releases the underlying model.
func (m *Model) Free() {
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
}

type voskRecognizer struct {
	rec *vosk.VoskRecognizer
}

func (v *voskRecognizer) Accept(pcm []byte) (Result, error) {
	if v.rec.AcceptWaveform(pcm) != 0 {
		text, err := parseFinal(v.rec.Result())
		if err != nil {
			return Result{}, err
		}
		return Result{Final: true, Text: text}, nil
	}
	text, err := parsePartial(v.rec.PartialResult())
	if err != nil {
		return Result{}, err
	}
	return Result{Final: false, Text: text}, nil
}

func (v *voskRecognizer) Partial() (string, error) {
	return parsePartial(v.rec.PartialResult())
}

func (v *voskRecognizer) Close() error {
	if v.rec != nil {
		v.rec.Free()
		v.rec = nil
	}
	return nil
}

func parseFinal(raw string) (string, error) {
	var r struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return "", fmt.Errorf("vosk: parse result: %w", err)
	}
	return strings.TrimSpace(r.Text), nil
}

func parsePartial(raw string) (string, error) {
	var r struct {
		Partial string `json:"partial"`
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return "", fmt.Errorf("vosk: parse partial: %w", err)
	}
	return strings.TrimSpace(r.Partial), nil
}
