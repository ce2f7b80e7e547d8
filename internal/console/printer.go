// Package console renders the dashboard on a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/hamed0406/checkboard/internal/catalog"
	"github.com/hamed0406/checkboard/internal/domain"
	"github.com/hamed0406/checkboard/internal/status"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Printer writes one line per transition. Safe for concurrent use.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	held    bool
	pending []string
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) Observe(_ context.Context, t domain.Transition) {
	line := fmt.Sprintf("%s %-30s %s", faint(t.At.Format(time.TimeOnly)), t.Key.String(), phase(t.Phase))
	if t.Manual {
		line += faint(" (manual)")
	}
	if t.Result != nil {
		line += "  " + resultText(*t.Result)
	}
	p.println(line)
}

// List prints every check grouped by project with its current state.
func (p *Printer) List(checks []domain.Check, states []domain.State) {
	byKey := make(map[domain.Key]domain.State, len(states))
	for _, st := range states {
		byKey[st.Key] = st
	}
	var b strings.Builder
	for _, g := range catalog.ByProject(checks) {
		fmt.Fprintln(&b, bold(g.Project))
		for _, c := range g.Checks {
			st := byKey[c.Key()]
			fmt.Fprintf(&b, "  %-24s %s", c.Name, phase(st.Phase))
			if st.Result != nil {
				fmt.Fprintf(&b, "  %s", resultText(*st.Result))
			}
			fmt.Fprintln(&b)
			for _, param := range c.DisplayParameters() {
				fmt.Fprintf(&b, "      %s\n", faint(param))
			}
		}
	}
	p.print(b.String())
}

func (p *Printer) Status(s status.Summary) {
	var ind string
	switch s.Indicator {
	case status.IndicatorLoading:
		ind = yellow("⟳ loading")
	case status.IndicatorSuccess:
		ind = green("✔ all healthy")
	default:
		ind = red("✖ failing")
	}
	line := fmt.Sprintf("%s  (%d checks, %d loading, %d failing)", ind, s.Total, s.Loading, len(s.Failing))
	for _, k := range s.Failing {
		line += "\n  " + red(k.String())
	}
	p.println(line)
}

func (p *Printer) println(s string) { p.print(s + "\n") }

func (p *Printer) print(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.held {
		p.pending = append(p.pending, s)
		return
	}
	fmt.Fprint(p.out, s)
}

// hold writes question and queues every other write until release.
func (p *Printer) hold(question string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.held = true
	fmt.Fprint(p.out, question)
}

func (p *Printer) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.held = false
	for _, s := range p.pending {
		fmt.Fprint(p.out, s)
	}
	p.pending = nil
}

func phase(ph domain.Phase) string {
	switch ph {
	case domain.PhaseSuccess:
		return green(string(ph))
	case domain.PhaseFailure:
		return red(string(ph))
	case domain.PhaseLoading:
		return yellow(string(ph))
	default:
		return faint(string(ph))
	}
}

func resultText(r domain.Result) string {
	s := fmt.Sprintf("%.2fs", r.Duration)
	if r.Datetime != nil {
		s += " @ " + r.Datetime.Format(time.DateTime)
	}
	if r.Data != nil {
		s += " " + fmt.Sprint(r.Data)
	}
	return faint(s)
}
