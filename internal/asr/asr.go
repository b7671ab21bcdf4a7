package asr

// Result is one recognizer observation for an accepted frame.
type Result struct {
	// Final reports whether Text is committed text for a completed phrase.
	// When false, Text holds the current revisable partial hypothesis.
	Final bool
	Text  string
}

// Recognizer wraps an external incremental speech recognizer. Implementations
// are stateful and order-sensitive: frames for one session must be fed by a
// single caller strictly in arrival order. Final text is authoritative and
// append-only; partial text is informational only.
type Recognizer interface {
	// Accept feeds one PCM16LE 16kHz mono frame.
	Accept(pcm []byte) (Result, error)
	// Partial returns the current partial hypothesis for speech in progress.
	Partial() (string, error)
	Close() error
}

// Factory builds one Recognizer per interview session.
type Factory func() (Recognizer, error)
