package query

import "strings"

// Token is one unit from the upstream preprocessor: a single word, or a
// multi-word group that must match as a phrase.
type Token []string

// Build folds tokens left to right. "or" and "not" combine the expression
// built so far with the token right after them, into an Or or an AndNot.
// Everything else is appended, and the pieces are joined with an implicit
// And. An operator with nothing on its left or right is kept as a term.
func Build(tokens []Token) Expr {
	var parts []Expr
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if len(tok) == 0 {
			continue
		}
		if len(tok) == 1 && len(parts) > 0 && i+1 < len(tokens) && len(tokens[i+1]) > 0 {
			switch strings.ToLower(tok[0]) {
			case "or":
				left := parts[len(parts)-1]
				right := group(tokens[i+1])
				parts[len(parts)-1] = mergeOr(left, right)
				i++
				continue
			case "not":
				left := parts[len(parts)-1]
				parts[len(parts)-1] = &AndNot{Left: left, Right: group(tokens[i+1])}
				i++
				continue
			}
		}
		parts = append(parts, group(tok))
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	return &And{Children: parts}
}

// Words builds tokens from whitespace separated words, one token each.
func Words(s string) []Token {
	fields := strings.Fields(s)
	tokens := make([]Token, len(fields))
	for i, f := range fields {
		tokens[i] = Token{f}
	}
	return tokens
}

func group(tok Token) Expr {
	if len(tok) == 1 {
		return &Term{Value: tok[0]}
	}
	return &Phrase{Terms: append([]string(nil), tok...)}
}

// mergeOr flattens chains of ORs into one node.
func mergeOr(left, right Expr) Expr {
	if o, ok := left.(*Or); ok {
		return &Or{Children: append(append([]Expr(nil), o.Children...), right)}
	}
	return &Or{Children: []Expr{left, right}}
}
