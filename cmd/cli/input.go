package main

import (
	"bufio"
	"io"
	"os"

	"github.com/peterh/liner"
)

// lineReader yields shell input lines. Prompt returns io.EOF at end of input.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// newLineReader uses liner's line editing on an interactive terminal and a
// plain scanner otherwise.
func newLineReader(in io.Reader, out io.Writer, history *History) lineReader {
	if in == os.Stdin && liner.TerminalSupported() {
		l := liner.NewLiner()
		l.SetCtrlCAborts(true)
		if history != nil {
			_ = history.seed(l)
		}
		return &linerReader{State: l}
	}
	return &scanReader{scanner: bufio.NewScanner(in), out: out}
}

type linerReader struct {
	*liner.State
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	line, err := r.State.Prompt(prompt)
	if err == liner.ErrPromptAborted {
		return "", io.EOF
	}
	return line, err
}

type scanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (r *scanReader) Prompt(prompt string) (string, error) {
	printf(r.out, "%s", prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scanReader) AppendHistory(string) {}

func (r *scanReader) Close() error { return nil }
