package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInputClosed is returned when the operator's input ends before an answer
var ErrInputClosed = errors.New("input closed")

// Action is one operator decision at a checkpoint
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionSkip    Action = "skip"
	ActionStop    Action = "stop"
)

// Prompter asks the operator questions on a line-oriented terminal
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewPrompter creates a prompter reading answers from in
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// YesNo asks a yes/no question and repeats it until the answer is understood
func (p *Prompter) YesNo(question string) (bool, error) {
	for {
		answer, err := p.ask(question + " [y/n]: ")
		if err != nil {
			return false, err
		}
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}

// Checkpoint asks for the action on the invoice awaiting confirmation
func (p *Prompter) Checkpoint() (Action, error) {
	for {
		answer, err := p.ask("[c]onfirm / [s]kip / s[t]op: ")
		if err != nil {
			return "", err
		}
		switch answer {
		case "c", "confirm":
			return ActionConfirm, nil
		case "s", "skip":
			return ActionSkip, nil
		case "t", "stop":
			return ActionStop, nil
		}
		fmt.Fprintln(p.out, "Please answer c, s or t.")
	}
}

func (p *Prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrInputClosed
	}
	return strings.ToLower(strings.TrimSpace(p.scanner.Text())), nil
}
