// Package stagestest provides a scripted model backend for stage tests.
package stagestest

import (
	"context"
	"strings"
	"sync"

	"car-advisor/internal/common/prompts"
	"car-advisor/internal/llm"
)

// Call is one recorded Invoke.
type Call struct {
	Messages []llm.Message
	Options  llm.Options
}

// Prompt joins every message content of the call.
func (c Call) Prompt() string {
	parts := make([]string, len(c.Messages))
	for i, m := range c.Messages {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}

// Invoker answers each call with Reply. It is safe for concurrent use.
type Invoker struct {
	Reply func(call Call) (string, error)

	mu    sync.Mutex
	calls []Call
}

func NewInvoker(reply func(call Call) (string, error)) *Invoker {
	return &Invoker{Reply: reply}
}

// Static always returns text.
func Static(text string) *Invoker {
	return NewInvoker(func(Call) (string, error) { return text, nil })
}

func (i *Invoker) Invoke(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	call := Call{Messages: messages, Options: opts}
	i.mu.Lock()
	i.calls = append(i.calls, call)
	i.mu.Unlock()
	return i.Reply(call)
}

func (i *Invoker) Calls() []Call {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Call, len(i.calls))
	copy(out, i.calls)
	return out
}

// Prompts returns a template source with a short placeholder for every template.
func Prompts() prompts.Static {
	src := make(prompts.Static, len(prompts.All))
	for _, name := range prompts.All {
		src[name] = "TEMPLATE " + name
	}
	return src
}
