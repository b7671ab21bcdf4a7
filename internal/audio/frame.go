package audio

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Frames arrive from clients in one of three shapes: raw binary, base64 text
// (optionally a data URL), or a JSON array of integer samples. All of them
// normalize to PCM 16-bit signed little-endian mono at 16 kHz before they are
// allowed anywhere near the recognizer.

// ErrShortFrame marks a frame below the noise floor; callers drop it silently.
var ErrShortFrame = errors.New("audio: frame below noise floor")

// ErrBadEncoding marks an undecodable payload; callers log and drop the frame.
var ErrBadEncoding = errors.New("audio: unrecognized frame encoding")

// Normalizer converts incoming frame payloads into canonical PCM16LE buffers.
type Normalizer struct {
	// MinBytes is the noise floor: decoded frames shorter than this are discarded.
	MinBytes int
}

// NewNormalizer returns a Normalizer with the given noise floor (bytes).
func NewNormalizer(minBytes int) Normalizer {
	if minBytes <= 0 {
		minBytes = 320 // 10ms at 16kHz PCM16
	}
	return Normalizer{MinBytes: minBytes}
}

// Raw validates an already-binary PCM16LE frame.
func (n Normalizer) Raw(b []byte) ([]byte, error) {
	if len(b) < n.MinBytes {
		return nil, ErrShortFrame
	}
	return b, nil
}

// Payload decodes a JSON-carried frame: either a base64 string or an array of
// integer samples.
func (n Normalizer) Payload(raw json.RawMessage) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, ErrBadEncoding
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
		}
		return n.Base64(s)
	case '[':
		var samples []int32
		if err := json.Unmarshal(raw, &samples); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
		}
		return n.Samples(samples)
	default:
		return nil, ErrBadEncoding
	}
}

// Base64 decodes a base64 text frame. Browser MediaRecorder clients send data
// URLs ("data:...;base64,<payload>"); the prefix is stripped when present.
func (n Normalizer) Base64(s string) ([]byte, error) {
	if idx := strings.IndexByte(s, ','); idx >= 0 && strings.HasPrefix(s, "data:") {
		s = s[idx+1:]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// some clients omit padding
		b, err = base64.RawStdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
		}
	}
	return n.Raw(b)
}

// Samples packs an integer sample sequence into PCM16LE, clamping out-of-range
// values.
func (n Normalizer) Samples(samples []int32) ([]byte, error) {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:(i+1)*2], uint16(int16(s)))
	}
	return n.Raw(out)
}
