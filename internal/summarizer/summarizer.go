package summarizer

import (
	"context"
	"errors"
)

var ErrExternalService = errors.New("external service failure")

// Completer turns a system instruction and a user prompt into completion text.
type Completer interface {
	Complete(ctx context.Context, system string, prompt string) (string, error)
}

// Template is one instruction pair sent to a Completer.
type Template struct {
	// System is sent with the system role.
	System string
	// Instruction is appended to the rendered patient data in the user prompt.
	Instruction string
}

// Templates holds the two instruction pairs used for a brief.
type Templates struct {
	TrialMatch Template
	Report     Template
}
