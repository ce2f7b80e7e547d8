// Package diagram reflects check state onto an architecture diagram.
package diagram

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/domain"
)

const (
	ColorSuccess = "green"
	ColorFailure = "red"
)

// Node is one addressable element of the diagram.
type Node interface {
	SetFill(color string)
	ClearFill()
	AddTooltip(text string)
	LinkTo(anchor string)
}

// Document resolves nodes by the composite "<project>--<name>" id.
type Document interface {
	Node(id string) (Node, bool)
}

// Annotator binds checks to diagram nodes. A missing document or node only
// skips annotation for the affected checks.
type Annotator struct {
	log *zap.Logger
	doc Document

	mu    sync.RWMutex
	nodes map[domain.Key]Node
}

// NewAnnotator accepts a nil doc, meaning the diagram could not be loaded.
func NewAnnotator(log *zap.Logger, doc Document) *Annotator {
	return &Annotator{log: log, doc: doc, nodes: make(map[domain.Key]Node)}
}

// BindAll binds every check and returns how many nodes were found.
func (a *Annotator) BindAll(checks []domain.Check) int {
	if a.doc == nil {
		a.log.Warn("diagram_unavailable", zap.Int("checks", len(checks)))
		return 0
	}
	n := 0
	for _, c := range checks {
		if a.Bind(c) {
			n++
		}
	}
	return n
}

// Bind attaches a tooltip and an anchor link to the check's node.
func (a *Annotator) Bind(c domain.Check) bool {
	k := c.Key()
	if a.doc == nil {
		a.log.Warn("diagram_unavailable", zap.String("check", k.String()))
		return false
	}
	node, ok := a.doc.Node(k.ID())
	if !ok {
		a.log.Warn("diagram_node_missing", zap.String("check", k.String()), zap.String("id", k.ID()))
		return false
	}
	node.AddTooltip(c.Tooltip())
	node.LinkTo(k.ID())

	a.mu.Lock()
	a.nodes[k] = node
	a.mu.Unlock()
	return true
}

func (a *Annotator) node(k domain.Key) (Node, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n, ok := a.nodes[k]
	return n, ok
}

func (a *Annotator) Reflect(k domain.Key, success bool) {
	n, ok := a.node(k)
	if !ok {
		return
	}
	if success {
		n.SetFill(ColorSuccess)
	} else {
		n.SetFill(ColorFailure)
	}
}

// Clear drops the fill so no stale color shows while a refresh is loading.
func (a *Annotator) Clear(k domain.Key) {
	if n, ok := a.node(k); ok {
		n.ClearFill()
	}
}

func (a *Annotator) Observe(_ context.Context, t domain.Transition) {
	switch t.Phase {
	case domain.PhaseLoading:
		a.Clear(t.Key)
	case domain.PhaseSuccess, domain.PhaseFailure:
		a.Reflect(t.Key, t.Phase == domain.PhaseSuccess)
	}
}
