// Package query models boolean search expressions as a tree of terms,
// phrase groups and operators. Trees are built once from upstream tokens or
// parsed once from their textual form and then passed around as data.
package query

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/analysis"
)

// Expr is one node of a query tree: *Term, *Phrase, *And, *Or or *AndNot.
type Expr interface {
	String() string
	expr()
}

// Term matches documents containing one term.
type Term struct {
	Value string
}

// Phrase matches documents containing its terms at consecutive positions.
type Phrase struct {
	Terms []string
}

// And matches documents matched by every child.
type And struct {
	Children []Expr
}

// Or matches documents matched by any child.
type Or struct {
	Children []Expr
}

// AndNot matches documents matched by Left and not by Right.
type AndNot struct {
	Left  Expr
	Right Expr
}

func (*Term) expr()   {}
func (*Phrase) expr() {}
func (*And) expr()    {}
func (*Or) expr()     {}
func (*AndNot) expr() {}

func (t *Term) String() string   { return "(" + t.Value + ")" }
func (p *Phrase) String() string { return "(" + strings.Join(p.Terms, " ") + ")" }

func (a *And) String() string {
	parts := make([]string, len(a.Children))
	for i, c := range a.Children {
		parts[i] = c.String()
	}
	return strings.Join(parts, " AND ")
}

func (o *Or) String() string {
	parts := make([]string, len(o.Children))
	for i, c := range o.Children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (n *AndNot) String() string {
	return n.Left.String() + " AND NOT " + n.Right.String()
}

// TermsOf reports whether every child is a single term, and returns them.
func TermsOf(children []Expr) ([]string, bool) {
	terms := make([]string, 0, len(children))
	for _, c := range children {
		t, ok := c.(*Term)
		if !ok {
			return nil, false
		}
		terms = append(terms, t.Value)
	}
	return terms, true
}

// Terms lists every term in e once, in first-seen order. Excluded terms are
// included; the list is meant for highlighting and fallback queries.
func Terms(e Expr) []string {
	var out []string
	seen := make(map[string]struct{})
	var walk func(Expr)
	add := func(t string) {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	walk = func(e Expr) {
		switch n := e.(type) {
		case *Term:
			add(n.Value)
		case *Phrase:
			for _, t := range n.Terms {
				add(t)
			}
		case *And:
			for _, c := range n.Children {
				walk(c)
			}
		case *Or:
			for _, c := range n.Children {
				walk(c)
			}
		case *AndNot:
			walk(n.Left)
			walk(n.Right)
		}
	}
	if e != nil {
		walk(e)
	}
	return out
}

// Normalize rewrites every term of e through n. A term that normalizes to
// nothing is dropped, one that expands to several becomes a phrase. Phrases
// keep whatever terms survive so evaluation can report a too-short phrase.
// The result is nil when no term survives.
func Normalize(e Expr, n analysis.Normalizer) Expr {
	switch node := e.(type) {
	case *Term:
		terms := n.Terms(node.Value)
		switch len(terms) {
		case 0:
			return nil
		case 1:
			return &Term{Value: terms[0]}
		default:
			return &Phrase{Terms: terms}
		}
	case *Phrase:
		var terms []string
		for _, t := range node.Terms {
			terms = append(terms, n.Terms(t)...)
		}
		if len(terms) == 0 {
			return nil
		}
		return &Phrase{Terms: terms}
	case *And:
		children := normalizeAll(node.Children, n)
		switch len(children) {
		case 0:
			return nil
		case 1:
			return children[0]
		}
		return &And{Children: children}
	case *Or:
		children := normalizeAll(node.Children, n)
		switch len(children) {
		case 0:
			return nil
		case 1:
			return children[0]
		}
		return &Or{Children: children}
	case *AndNot:
		left := Normalize(node.Left, n)
		if left == nil {
			return nil
		}
		right := Normalize(node.Right, n)
		if right == nil {
			return left
		}
		return &AndNot{Left: left, Right: right}
	}
	return nil
}

func normalizeAll(children []Expr, n analysis.Normalizer) []Expr {
	out := make([]Expr, 0, len(children))
	for _, c := range children {
		if nc := Normalize(c, n); nc != nil {
			out = append(out, nc)
		}
	}
	return out
}
