package testutil

import (
	"context"
	"strings"
	"sync"
)

// Call is one command recorded by a RecordingRunner.
type Call struct {
	Cmd  string
	Args []string
}

func (c Call) String() string {
	return strings.Join(append([]string{c.Cmd}, c.Args...), " ")
}

// RecordingRunner records every command instead of executing it.
// Handler decides the outcome of each call; without one every call succeeds.
type RecordingRunner struct {
	Handler func(call Call) (string, error)

	mu    sync.Mutex
	calls []Call
}

func (r *RecordingRunner) Output(ctx context.Context, cmd string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return r.record(Call{Cmd: cmd, Args: args})
}

func (r *RecordingRunner) Passthrough(ctx context.Context, cmd string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := r.record(Call{Cmd: cmd, Args: args})

	return err
}

func (r *RecordingRunner) record(call Call) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	handler := r.Handler
	r.mu.Unlock()

	if handler == nil {
		return "", nil
	}

	return handler(call)
}

// Lines returns all recorded command lines in order.
func (r *RecordingRunner) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		lines = append(lines, c.String())
	}

	return lines
}

// Count returns how many recorded command lines start with prefix.
func (r *RecordingRunner) Count(prefix string) int {
	var n int
	for _, line := range r.Lines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}

	return n
}
