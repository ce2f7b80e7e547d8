package diagram

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/beevik/etree"
)

// SVG is a Document backed by a parsed SVG file. All node edits and
// serialization share one lock since etree trees are not concurrency safe.
type SVG struct {
	mu  sync.RWMutex
	doc *etree.Document
	ids map[string]*etree.Element
}

func LoadSVG(path string) (*SVG, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("read diagram %s: %w", path, err)
	}
	return newSVG(doc)
}

func ParseSVG(r io.Reader) (*SVG, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("parse diagram: %w", err)
	}
	return newSVG(doc)
}

func newSVG(doc *etree.Document) (*SVG, error) {
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return nil, errors.New("parse diagram: root element is not <svg>")
	}
	s := &SVG{doc: doc, ids: make(map[string]*etree.Element)}
	for _, el := range doc.FindElements("//*[@id]") {
		s.ids[el.SelectAttrValue("id", "")] = el
	}
	return s, nil
}

func (s *SVG) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.ids[id]
	if !ok {
		return nil, false
	}
	return &svgNode{svg: s, el: el}, true
}

func (s *SVG) WriteTo(w io.Writer) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.WriteTo(w)
}

type svgNode struct {
	svg *SVG
	el  *etree.Element
}

func (n *svgNode) SetFill(color string) {
	n.svg.mu.Lock()
	defer n.svg.mu.Unlock()
	n.el.CreateAttr("fill", color)
}

func (n *svgNode) ClearFill() {
	n.svg.mu.Lock()
	defer n.svg.mu.Unlock()
	n.el.RemoveAttr("fill")
}

func (n *svgNode) AddTooltip(text string) {
	n.svg.mu.Lock()
	defer n.svg.mu.Unlock()
	n.el.CreateElement("title").SetText(text)
}

// LinkTo makes the node navigate the embedding page to #anchor when clicked.
func (n *svgNode) LinkTo(anchor string) {
	n.svg.mu.Lock()
	defer n.svg.mu.Unlock()
	n.el.CreateAttr("data-anchor", anchor)
	n.el.CreateAttr("onclick", "window.top.location.hash=this.dataset.anchor")
	style := strings.TrimRight(n.el.SelectAttrValue("style", ""), "; ")
	if style != "" {
		style += ";"
	}
	n.el.CreateAttr("style", style+"cursor:pointer")
}
