package logging

import "testing"

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		if logger := New(level); logger == nil || logger.Logger == nil {
			t.Fatalf("New(%q) returned nil logger", level)
		}
	}
}

func TestNewWithFormat(t *testing.T) {
	if logger := NewWithFormat("info", "text"); logger == nil {
		t.Fatal("text logger is nil")
	}
	if logger := NewWithFormat("info", "json"); logger == nil {
		t.Fatal("json logger is nil")
	}
}

func TestWithAttachesAttrs(t *testing.T) {
	base := Default()
	child := base.With("component", "test")
	if child == nil || child.Logger == base.Logger {
		t.Fatal("With should return a derived logger")
	}
}
