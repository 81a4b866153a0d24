// Package llmtest provides a scripted llm.LLM for tests.
package llmtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sat8bit/taiwa/llm"
)

// ErrExhausted is returned when the script has no more replies.
var ErrExhausted = errors.New("llmtest: script exhausted")

// Script returns canned replies in order and records every call.
// A non-nil error in Errors at the same index is returned instead of the reply.
type Script struct {
	Replies []string
	Errors  []error
	// Func, if set, is used instead of Replies.
	Func func(call int, input llm.GenerateInput) (string, error)

	mu    sync.Mutex
	calls []llm.GenerateInput
}

// NewScript returns a Script answering with replies in order.
func NewScript(replies ...string) *Script {
	return &Script{Replies: replies}
}

func (s *Script) Generate(ctx context.Context, input llm.GenerateInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	n := len(s.calls)
	s.calls = append(s.calls, input)
	s.mu.Unlock()

	if s.Func != nil {
		return s.Func(n, input)
	}
	if n < len(s.Errors) && s.Errors[n] != nil {
		return "", s.Errors[n]
	}
	if n >= len(s.Replies) {
		return "", fmt.Errorf("call %d: %w", n, ErrExhausted)
	}
	return s.Replies[n], nil
}

// Calls returns a copy of the recorded inputs.
func (s *Script) Calls() []llm.GenerateInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.GenerateInput(nil), s.calls...)
}

// CallCount returns the number of Generate calls so far.
func (s *Script) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

var _ llm.LLM = (*Script)(nil)
