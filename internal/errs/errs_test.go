package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestErrorIs(t *testing.T) {
	inner := Errorf(NoCorpus, "rebuild", "no documents in %v", []string{"./data"})
	err := fmt.Errorf("ensure ready: %w", E(IndexUnavailable, "manager.init", inner))

	tests := []struct {
		name   string
		target error
		want   bool
	}{
		{"outer kind", ErrIndexUnavailable, true},
		{"wrapped kind", ErrNoCorpus, true},
		{"other kind", ErrPersist, false},
		{"non errs target", fs.ErrNotExist, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(err, tt.target); got != tt.want {
				t.Errorf("errors.Is(%v) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
	if KindOf(err) != IndexUnavailable {
		t.Errorf("KindOf = %v, want %v", KindOf(err), IndexUnavailable)
	}
}

func TestErrorUnwrapCause(t *testing.T) {
	err := E(IndexLoad, "vector.load", fs.ErrNotExist)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("cause should be reachable through Unwrap")
	}
}

func TestDocumentOf(t *testing.T) {
	err := fmt.Errorf("ingest: %w", Errorf(Extraction, "extract", "bad zip").WithDocument("broken.docx"))
	if got := DocumentOf(err); got != "broken.docx" {
		t.Errorf("DocumentOf = %q", got)
	}
	if got := err.Error(); got != "ingest: extract: extraction (broken.docx): bad zip" {
		t.Errorf("Error() = %q", got)
	}
	if DocumentOf(errors.New("plain")) != "" {
		t.Error("plain error has no document")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain error kind should be unknown")
	}
}
