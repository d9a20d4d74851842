package engine

import (
	"strconv"
	"strings"
	"unicode"
)

// Evaluate вычисляет условие ветвления по снимку переменных.
//
// Грамматика (закрытая, без вызовов функций и присваиваний):
//
//	expr    := or
//	or      := and { "or" and }
//	and     := cmp { "and" cmp }
//	cmp     := "(" expr ")" | operand op operand
//	op      := "<" | "<=" | ">" | ">=" | "==" | "!="
//	operand := "{" ident "}" | число | строка | "true" | "false"
//
// Ссылка на переменную — {имя}, например "{score} < 700".
// Ссылка на необъявленную переменную, сравнение несовместимых типов
// и любой выход за грамматику возвращают ошибку InvalidExpression.
func Evaluate(expression string, variables map[string]any) (bool, error) {
	tokens, err := lex(expression)
	if err != nil {
		return false, err
	}

	p := &exprParser{expr: expression, tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return false, newExprError(expression, tok.pos, "unexpected %q", tok.text)
	}

	return node.eval(expression, variables)
}

// --- Лексер ---

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokVar           // {имя}
	tokNumber
	tokString
	tokBool
	tokAnd
	tokOr
	tokOperator // <, <=, >, >=, ==, !=
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex разбивает выражение на токены.
func lex(expr string) ([]token, error) {
	var tokens []token
	i := 0

	for i < len(expr) {
		c := expr[i]

		switch {
		case c == ' ' || c == '\t':
			i++

		case c == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++

		case c == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++

		case c == '{':
			end := strings.IndexByte(expr[i:], '}')
			if end < 0 {
				return nil, newExprError(expr, i, "unterminated variable reference")
			}
			name := strings.TrimSpace(expr[i+1 : i+end])
			if name == "" {
				return nil, newExprError(expr, i, "empty variable reference")
			}
			tokens = append(tokens, token{tokVar, name, i})
			i += end + 1

		case c == '\'' || c == '"':
			quote := c
			end := strings.IndexByte(expr[i+1:], quote)
			if end < 0 {
				return nil, newExprError(expr, i, "unterminated string literal")
			}
			tokens = append(tokens, token{tokString, expr[i+1 : i+1+end], i})
			i += end + 2

		case c == '<' || c == '>' || c == '=' || c == '!':
			op := string(c)
			if i+1 < len(expr) && expr[i+1] == '=' {
				op += "="
				i++
			}
			if op == "=" || op == "!" {
				return nil, newExprError(expr, i, "unknown operator %q", op)
			}
			tokens = append(tokens, token{tokOperator, op, i})
			i++

		case c >= '0' && c <= '9' || c == '-':
			start := i
			i++
			for i < len(expr) && (expr[i] >= '0' && expr[i] <= '9' || expr[i] == '.') {
				i++
			}
			text := expr[start:i]
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, newExprError(expr, start, "malformed number %q", text)
			}
			tokens = append(tokens, token{tokNumber, text, start})

		case isWordStart(rune(c)):
			start := i
			for i < len(expr) && isWordChar(rune(expr[i])) {
				i++
			}
			word := expr[start:i]
			switch word {
			case "and":
				tokens = append(tokens, token{tokAnd, word, start})
			case "or":
				tokens = append(tokens, token{tokOr, word, start})
			case "true", "false":
				tokens = append(tokens, token{tokBool, word, start})
			default:
				return nil, newExprError(expr, start, "unexpected identifier %q (variables are referenced as {name})", word)
			}

		default:
			return nil, newExprError(expr, i, "unexpected character %q", string(c))
		}
	}

	tokens = append(tokens, token{tokEOF, "", len(expr)})
	return tokens, nil
}

func isWordStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// --- Парсер (рекурсивный спуск) ---

type exprParser struct {
	expr   string
	tokens []token
	pos    int
}

func (p *exprParser) peek() token {
	return p.tokens[p.pos]
}

func (p *exprParser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// parseOr: and { "or" and }
func (p *exprParser) parseOr() (boolNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orNode{left: left, right: right}
	}
	return left, nil
}

// parseAnd: cmp { "and" cmp }
func (p *exprParser) parseAnd() (boolNode, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		left = &andNode{left: left, right: right}
	}
	return left, nil
}

// parseCmp: "(" expr ")" | operand op operand
func (p *exprParser) parseCmp() (boolNode, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok := p.next(); tok.kind != tokRParen {
			return nil, newExprError(p.expr, tok.pos, "expected closing parenthesis")
		}
		return inner, nil
	}

	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	opTok := p.next()
	if opTok.kind != tokOperator {
		return nil, newExprError(p.expr, opTok.pos, "expected comparison operator, got %q", opTok.text)
	}

	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	return &cmpNode{op: opTok.text, pos: opTok.pos, lhs: lhs, rhs: rhs}, nil
}

// parseOperand: переменная, число, строка или булев литерал.
func (p *exprParser) parseOperand() (operand, error) {
	tok := p.next()
	switch tok.kind {
	case tokVar:
		return &varRef{name: tok.text, pos: tok.pos}, nil
	case tokNumber:
		f, _ := strconv.ParseFloat(tok.text, 64)
		return &literal{val: f}, nil
	case tokString:
		return &literal{val: tok.text}, nil
	case tokBool:
		return &literal{val: tok.text == "true"}, nil
	default:
		return nil, newExprError(p.expr, tok.pos, "expected operand, got %q", tok.text)
	}
}

// --- AST и вычисление ---

// boolNode — узел AST с булевым результатом.
type boolNode interface {
	eval(expr string, vars map[string]any) (bool, error)
}

// operand — операнд сравнения.
type operand interface {
	value(expr string, vars map[string]any) (any, error)
}

type orNode struct {
	left, right boolNode
}

func (n *orNode) eval(expr string, vars map[string]any) (bool, error) {
	l, err := n.left.eval(expr, vars)
	if err != nil {
		return false, err
	}
	r, err := n.right.eval(expr, vars)
	if err != nil {
		return false, err
	}
	return l || r, nil
}

type andNode struct {
	left, right boolNode
}

func (n *andNode) eval(expr string, vars map[string]any) (bool, error) {
	l, err := n.left.eval(expr, vars)
	if err != nil {
		return false, err
	}
	r, err := n.right.eval(expr, vars)
	if err != nil {
		return false, err
	}
	return l && r, nil
}

type cmpNode struct {
	op       string
	pos      int
	lhs, rhs operand
}

func (n *cmpNode) eval(expr string, vars map[string]any) (bool, error) {
	lv, err := n.lhs.value(expr, vars)
	if err != nil {
		return false, err
	}
	rv, err := n.rhs.value(expr, vars)
	if err != nil {
		return false, err
	}
	return compare(expr, n.pos, n.op, lv, rv)
}

type varRef struct {
	name string
	pos  int
}

func (v *varRef) value(expr string, vars map[string]any) (any, error) {
	val, ok := vars[v.name]
	if !ok {
		return nil, newExprError(expr, v.pos, "undeclared variable %q", v.name)
	}
	return val, nil
}

type literal struct {
	val any
}

func (l *literal) value(string, map[string]any) (any, error) {
	return l.val, nil
}

// compare сравнивает два значения.
// Числа сравниваются как float64, строки — лексикографически,
// булевы — только на равенство. Несовместимые типы — ошибка.
func compare(expr string, pos int, op string, lv, rv any) (bool, error) {
	if ln, lok := toNumber(lv); lok {
		if rn, rok := toNumber(rv); rok {
			return compareOrdered(expr, pos, op, ln, rn)
		}
	}

	if ls, lok := lv.(string); lok {
		if rs, rok := rv.(string); rok {
			return compareOrdered(expr, pos, op, ls, rs)
		}
	}

	if lb, lok := lv.(bool); lok {
		if rb, rok := rv.(bool); rok {
			switch op {
			case "==":
				return lb == rb, nil
			case "!=":
				return lb != rb, nil
			default:
				return false, newExprError(expr, pos, "operator %q is not defined for booleans", op)
			}
		}
	}

	return false, newExprError(expr, pos, "cannot compare %T and %T", lv, rv)
}

// compareOrdered сравнивает два значения упорядоченного типа.
func compareOrdered[T float64 | string](expr string, pos int, op string, l, r T) (bool, error) {
	switch op {
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	default:
		return false, newExprError(expr, pos, "unknown operator %q", op)
	}
}

// toNumber приводит значение к float64.
// Покрывает типы, приходящие из JSON и из Go-кода.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
