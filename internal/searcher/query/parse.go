package query

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/termshard/pkg/errors"
)

// Parse reads the textual form produced by String: parenthesized terms and
// phrase groups joined by AND, OR and AND NOT. Operators bind left to right
// with equal precedence and adjacent operands are joined by AND. A string
// with no parentheses and no operators is read as an OR of its words.
func Parse(s string) (Expr, error) {
	toks := lex(s)
	if len(toks) == 0 {
		return nil, nil
	}
	if plain(toks) {
		children := make([]Expr, len(toks))
		for i, t := range toks {
			children[i] = &Term{Value: t}
		}
		if len(children) == 1 {
			return children[0], nil
		}
		return &Or{Children: children}, nil
	}
	p := &parser{toks: toks}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, p.errorf("unexpected %q", p.toks[p.pos])
	}
	return e, nil
}

func lex(s string) []string {
	s = strings.NewReplacer("(", " ( ", ")", " ) ").Replace(s)
	return strings.Fields(s)
}

func isOperator(t string) bool {
	return t == "AND" || t == "OR" || t == "NOT"
}

func plain(toks []string) bool {
	for _, t := range toks {
		if t == "(" || t == ")" || isOperator(t) {
			return false
		}
	}
	return true
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("parsing query at token %d: %s: %w", p.pos, fmt.Sprintf(format, args...), apperrors.ErrInvalidInput)
}

func (p *parser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *parser) expr() (Expr, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case "", ")":
			return left, nil
		case "OR":
			p.pos++
			right, err := p.operand()
			if err != nil {
				return nil, err
			}
			left = mergeOr(left, right)
		case "AND":
			p.pos++
			if p.peek() == "NOT" {
				p.pos++
				right, err := p.operand()
				if err != nil {
					return nil, err
				}
				left = &AndNot{Left: left, Right: right}
				continue
			}
			right, err := p.operand()
			if err != nil {
				return nil, err
			}
			left = mergeAnd(left, right)
		case "NOT":
			p.pos++
			right, err := p.operand()
			if err != nil {
				return nil, err
			}
			left = &AndNot{Left: left, Right: right}
		default:
			right, err := p.operand()
			if err != nil {
				return nil, err
			}
			left = mergeAnd(left, right)
		}
	}
}

// operand reads a bare word or a parenthesized group. A group holding only
// words is a term or a phrase; anything else is a nested expression.
func (p *parser) operand() (Expr, error) {
	tok := p.peek()
	switch {
	case tok == "":
		return nil, p.errorf("unexpected end of query")
	case tok == ")" || isOperator(tok):
		return nil, p.errorf("expected a term, found %q", tok)
	case tok != "(":
		p.pos++
		return &Term{Value: tok}, nil
	}
	p.pos++
	end := p.pos
	for end < len(p.toks) && p.toks[end] != "(" && p.toks[end] != ")" && !isOperator(p.toks[end]) {
		end++
	}
	if end < len(p.toks) && p.toks[end] == ")" && end > p.pos {
		words := p.toks[p.pos:end]
		p.pos = end + 1
		return group(Token(words)), nil
	}
	inner, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.peek() != ")" {
		return nil, p.errorf("missing closing parenthesis")
	}
	p.pos++
	return inner, nil
}

func mergeAnd(left, right Expr) Expr {
	if a, ok := left.(*And); ok {
		return &And{Children: append(append([]Expr(nil), a.Children...), right)}
	}
	return &And{Children: []Expr{left, right}}
}
