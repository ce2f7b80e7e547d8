package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hamed0406/checkboard/internal/domain"
	"github.com/hamed0406/checkboard/internal/engine"
	"github.com/hamed0406/checkboard/internal/status"
)

type Engine interface {
	Checks() []domain.Check
	States() []domain.State
	TriggerManual(ctx context.Context, key domain.Key) (domain.State, error)
}

type StatusSource interface {
	Summary() status.Summary
}

// Shell is the interactive command loop. A Prompter on the same Input is
// only ever invoked from inside Run, through TriggerManual.
type Shell struct {
	Engine  Engine
	Status  StatusSource
	Printer *Printer
	in      *Input
}

func NewShell(eng Engine, st StatusSource, p *Printer, in *Input) *Shell {
	return &Shell{Engine: eng, Status: st, Printer: p, in: in}
}

const help = `commands:
  refresh <project>/<name>   refresh one check now
  status                     fleet status
  list                       every check and its state
  quit                       exit`

// Run reads commands until quit, end of input or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	for {
		line, err := s.in.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}
		if line = strings.TrimSpace(line); line != "" && s.exec(ctx, line) {
			return nil
		}
	}
}

func (s *Shell) exec(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "quit", "exit":
		return true
	case "status":
		s.Printer.Status(s.Status.Summary())
	case "list":
		s.Printer.List(s.Engine.Checks(), s.Engine.States())
	case "refresh":
		key, ok := ParseKey(arg)
		if !ok {
			s.Printer.println(red("usage: refresh <project>/<name>"))
			return false
		}
		if _, err := s.Engine.TriggerManual(ctx, key); err != nil {
			switch {
			case errors.Is(err, engine.ErrAlreadyLoading):
				s.Printer.println(yellow(key.String() + " is already loading"))
			case errors.Is(err, engine.ErrUnknownCheck):
				s.Printer.println(red("unknown check " + key.String()))
			default:
				s.Printer.println(red(err.Error()))
			}
		}
	default:
		s.Printer.println(help)
	}
	return false
}

// ParseKey parses "<project>/<name>".
func ParseKey(s string) (domain.Key, bool) {
	project, name, ok := strings.Cut(s, "/")
	if !ok || project == "" || name == "" {
		return domain.Key{}, false
	}
	return domain.Key{Project: project, Name: name}, true
}
