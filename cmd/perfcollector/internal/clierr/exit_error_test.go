package clierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeOf(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil", err: nil, expected: 0},
		{name: "plain error", err: cause, expected: ExitFailure},
		{name: "usage", err: Usagef("unknown subcommand %q", "bogus"), expected: ExitUsage},
		{name: "wrapped exit error", err: fmt.Errorf("running: %w", New(ExitUsage, "bad")), expected: ExitUsage},
		{name: "zero code normalized", err: New(0, "bad"), expected: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCodeOf(tt.err); got != tt.expected {
				t.Errorf("ExitCodeOf() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ExitFailure, "processing", cause)

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable")
	}
	if err.Error() != "processing: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if Wrap(ExitUsage, "only message", nil).Error() != "only message" {
		t.Error("expected nil cause to produce a plain message")
	}
}
