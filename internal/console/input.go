package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// ErrInterrupted is returned when the user aborts a prompt with Ctrl-C or Ctrl-D.
var ErrInterrupted = errors.New("prompt interrupted")

// ErrReaderAbandoned is returned by a TerminalReader whose earlier read was
// canceled.
var ErrReaderAbandoned = errors.New("credential reader abandoned by a canceled read")

// CredentialReader reads a secret without echoing it.
type CredentialReader interface {
	ReadCredential(ctx context.Context, prompt string) (string, error)
}

// Menu presents a list of choices and returns the selected index.
type Menu interface {
	Choose(label string, items []string) (int, error)
}

// Confirmer asks a yes/no question.
type Confirmer interface {
	Confirm(label string) (bool, error)
}

// TerminalReader reads credentials from a terminal with echo disabled. When
// the input is not a terminal (piped or redirected) it reads plain lines.
//
// Reads block in a goroutine that cannot be interrupted, so a canceled read
// leaves that goroutine waiting on in until the process exits. The reader is
// therefore single use once a read is canceled: later calls fail with
// ErrReaderAbandoned instead of racing the orphaned read for input. One
// TerminalReader serves one console session per process. It is not safe for
// concurrent use.
type TerminalReader struct {
	in        *os.File
	out       io.Writer
	lines     *bufio.Reader
	abandoned bool
}

// NewTerminalReader builds a reader over in, writing prompts to out.
func NewTerminalReader(in *os.File, out io.Writer) *TerminalReader {
	return &TerminalReader{in: in, out: out, lines: bufio.NewReader(in)}
}

type readResult struct {
	value string
	err   error
}

// ReadCredential prints prompt and returns what the user typed. io.EOF means
// the input was closed. A canceled ctx restores the terminal, returns
// ctx.Err() and abandons the reader.
func (r *TerminalReader) ReadCredential(ctx context.Context, prompt string) (string, error) {
	if r.abandoned {
		return "", ErrReaderAbandoned
	}
	fmt.Fprint(r.out, prompt)

	fd := int(r.in.Fd())
	if !term.IsTerminal(fd) {
		return r.readLine(ctx)
	}

	state, err := term.GetState(fd)
	if err != nil {
		return "", fmt.Errorf("get terminal state: %w", err)
	}
	done := make(chan readResult, 1)
	go func() {
		b, err := term.ReadPassword(fd)
		done <- readResult{value: string(b), err: err}
	}()

	select {
	case res := <-done:
		fmt.Fprintln(r.out)
		return res.value, res.err
	case <-ctx.Done():
		r.abandoned = true
		if err := term.Restore(fd, state); err != nil {
			return "", fmt.Errorf("restore terminal: %w", err)
		}
		fmt.Fprintln(r.out)
		return "", ctx.Err()
	}
}

func (r *TerminalReader) readLine(ctx context.Context) (string, error) {
	done := make(chan readResult, 1)
	go func() {
		line, err := r.lines.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			done <- readResult{err: err}
			return
		}
		done <- readResult{value: strings.TrimRight(line, "\r\n")}
	}()
	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		r.abandoned = true
		return "", ctx.Err()
	}
}

// PromptMenu is a Menu backed by promptui.Select.
type PromptMenu struct{}

// Choose runs an arrow-key selection.
func (PromptMenu) Choose(label string, items []string) (int, error) {
	sel := promptui.Select{
		Label: label,
		Items: items,
		Size:  len(items),
	}
	idx, _, err := sel.Run()
	if err != nil {
		return -1, promptError(err)
	}
	return idx, nil
}

// PromptConfirmer is a Confirmer backed by a promptui confirm prompt.
type PromptConfirmer struct{}

// Confirm returns true for "y". Answering "n" (or just Enter) is false.
func (PromptConfirmer) Confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := p.Run()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	default:
		return false, promptError(err)
	}
}

func promptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrInterrupted
	}
	return fmt.Errorf("prompt: %w", err)
}
