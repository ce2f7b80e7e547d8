package console

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Prompter asks for the refresh secret on the dashboard terminal. Transition
// lines are held back until the answer is in, so they cannot split the prompt.
type Prompter struct {
	in  *Input
	out *Printer
}

func NewPrompter(in *Input, out *Printer) *Prompter {
	return &Prompter{in: in, out: out}
}

func (p *Prompter) Prompt(ctx context.Context) (string, error) {
	p.out.hold("Refresh secret? ")
	defer p.out.release()

	line, err := p.in.ReadLine(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
