package console

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Input reads lines on its own goroutine so that every reader can give up
// when its context is cancelled. The shell and the secret prompt share one
// Input, and only one of them reads at a time.
type Input struct {
	lines chan string
	done  chan struct{}
	err   error // set before done is closed
}

func NewInput(r io.Reader) *Input {
	in := &Input{lines: make(chan string), done: make(chan struct{})}
	go in.read(bufio.NewReader(r))
	return in
}

func (in *Input) read(r *bufio.Reader) {
	defer close(in.done)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			in.lines <- strings.TrimRight(line, "\r\n")
		}
		if err != nil {
			in.err = err
			return
		}
	}
}

// ReadLine returns the next line without its newline. It returns ctx.Err()
// on cancellation and io.EOF once the input is exhausted.
func (in *Input) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-in.lines:
		return line, nil
	case <-in.done:
		return "", in.err
	}
}
