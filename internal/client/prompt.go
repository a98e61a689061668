package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the user for input. Passwords are read without echo when
// the input is a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int

	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

// NewPrompter reads from in and writes prompts to out.
func NewPrompter(in *os.File, out io.Writer) *Prompter {
	return &Prompter{
		in:           bufio.NewReader(in),
		out:          out,
		fd:           int(in.Fd()),
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
	}
}

// Line prints label and returns the next input line without surrounding
// whitespace. io.EOF is returned only when nothing was read.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password prints label and reads a secret. Surrounding whitespace is kept.
func (p *Prompter) Password(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if p.isTerminal(p.fd) {
		b, err := p.readPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
