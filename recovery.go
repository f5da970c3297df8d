package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrRetry is returned by a recovery hook to ask the envelope client to
// re-issue the failed request.
var ErrRetry = errors.New("retry requested")

// RecoveryStrategy decides what happens after a call to url failed with err.
// It returns ErrRetry to re-issue the call, or an error to propagate. A nil
// return recovers the call with the zero value of the expected type.
type RecoveryStrategy interface {
	Recover(ctx context.Context, url string, err error) error
}

// NoRecovery propagates every failure unchanged.
type NoRecovery struct{}

func (NoRecovery) Recover(_ context.Context, _ string, err error) error {
	return err
}

// Prompter asks the user a blocking yes/no question.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// PromptRecovery asks "<message> | Retry?" and retries on a yes. A no, a
// prompter failure or a done context propagate the original error.
type PromptRecovery struct {
	Prompter Prompter
}

func (p *PromptRecovery) Recover(ctx context.Context, _ string, err error) error {
	if p.Prompter == nil || ctx.Err() != nil {
		return err
	}

	ok, promptErr := p.Prompter.Confirm(ctx, Stringify(err)+" | Retry?")
	if promptErr != nil || !ok {
		return err
	}

	return ErrRetry
}

// TerminalPrompter reads y/N answers line by line. Concurrent questions are
// asked one at a time. A done context abandons the question; a line typed
// afterwards answers the next one.
type TerminalPrompter struct {
	mu    sync.Mutex
	in    *bufio.Reader
	out   io.Writer
	start sync.Once
	lines chan readResult
}

type readResult struct {
	line string
	err  error
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out, lines: make(chan readResult)}
}

func (p *TerminalPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	if _, err := fmt.Fprintf(p.out, "%s [y/N] ", question); err != nil {
		return false, err
	}

	p.start.Do(func() { go p.readLines() })

	var res readResult
	select {
	case r, ok := <-p.lines:
		if !ok {
			return false, io.EOF
		}
		res = r
	case <-ctx.Done():
		return false, ctx.Err()
	}

	if res.err != nil && (!errors.Is(res.err, io.EOF) || res.line == "") {
		return false, res.err
	}

	switch strings.ToLower(strings.TrimSpace(res.line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// readLines is the only reader of p.in. It hands over one line at a time and
// stops after the first read error.
func (p *TerminalPrompter) readLines() {
	defer close(p.lines)

	for {
		line, err := p.in.ReadString('\n')
		p.lines <- readResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

// DialogOptions describes a confirmation dialog. Exactly one of OnOk and
// OnCancel is expected to be called once the user answers.
type DialogOptions struct {
	Title      string
	Content    string
	OkText     string
	CancelText string
	OnOk       func()
	OnCancel   func()
}

// Dialog shows a non-blocking confirmation dialog.
type Dialog interface {
	Confirm(opts DialogOptions)
}

// DialogFunc adapts a function to [Dialog].
type DialogFunc func(opts DialogOptions)

func (f DialogFunc) Confirm(opts DialogOptions) {
	f(opts)
}

// DialogRecovery shows a "Network Error" dialog and waits for its answer.
// Confirming retries, cancelling or a done context propagate the original
// error.
type DialogRecovery struct {
	Dialog Dialog
}

func (d *DialogRecovery) Recover(ctx context.Context, url string, err error) error {
	if d.Dialog == nil {
		return err
	}

	decision := make(chan error, 1)
	var once sync.Once
	resolve := func(result error) {
		once.Do(func() { decision <- result })
	}

	d.Dialog.Confirm(DialogOptions{
		Title:      "Network Error",
		Content:    fmt.Sprintf("%s: %s", url, Stringify(err)),
		OkText:     "Retry",
		CancelText: "Cancel",
		OnOk:       func() { resolve(ErrRetry) },
		OnCancel:   func() { resolve(err) },
	})

	select {
	case result := <-decision:
		return result
	case <-ctx.Done():
		return err
	}
}
