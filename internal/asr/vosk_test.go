package asr

import "testing"

func TestParseFinal(t *testing.T) {
	text, err := parseFinal(`{"text" : "hello world"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("got %q", text)
	}
	if _, err := parseFinal(`not json`); err == nil {
		t.Fatalf("expected error for malformed result")
	}
}

func TestParsePartial(t *testing.T) {
	text, err := parsePartial(`{"partial" : " hel "}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if text != "hel" {
		t.Fatalf("expected trimmed partial, got %q", text)
	}
	text, err = parsePartial(`{"partial":""}`)
	if err != nil || text != "" {
		t.Fatalf("expected empty partial, got %q err=%v", text, err)
	}
}
