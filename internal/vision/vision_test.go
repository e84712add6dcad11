package vision

import (
	"context"
	"errors"
	"testing"
)

func TestAnalyzeWithoutAPIKey(t *testing.T) {
	c := New("", "", "some-model")

	if c.Configured() {
		t.Error("client with empty key should not report configured")
	}

	_, err := c.Analyze(context.Background(), "prompt", []byte{0x1}, "image/png")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestAnalyzeEmptyImage(t *testing.T) {
	c := New("", "key", "some-model")

	if _, err := c.Analyze(context.Background(), "prompt", nil, ""); err == nil {
		t.Error("expected error for empty image")
	}
}

func TestModelCallErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &ModelCallError{Err: cause}
	if !errors.Is(err, cause) {
		t.Error("ModelCallError should wrap its cause")
	}
}
