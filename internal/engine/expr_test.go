package engine

import (
	"errors"
	"testing"
)

func TestEvaluate_Comparisons(t *testing.T) {
	vars := map[string]any{
		"score":  650,
		"amount": 1500.5,
		"name":   "alice",
		"vip":    true,
	}

	cases := []struct {
		expr string
		want bool
	}{
		{"{score} < 700", true},
		{"{score} <= 650", true},
		{"{score} > 700", false},
		{"{score} >= 650", true},
		{"{score} == 650", true},
		{"{score} != 650", false},
		{"{amount} > 1000", true},
		{"{name} == 'alice'", true},
		{"{name} != \"bob\"", true},
		{"{name} < 'bob'", true},
		{"{vip} == true", true},
		{"{vip} != false", true},
		{"700 > {score}", true},
	}

	for _, c := range cases {
		got, err := Evaluate(c.expr, vars)
		if err != nil {
			t.Errorf("Evaluate(%q): unexpected error: %v", c.expr, err)
			continue
		}
		if got != c.want {
			t.Errorf("Evaluate(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvaluate_BooleanConnectives(t *testing.T) {
	vars := map[string]any{"score": 650, "amount": 2000}

	cases := []struct {
		expr string
		want bool
	}{
		{"{score} < 700 and {amount} > 1000", true},
		{"{score} > 700 and {amount} > 1000", false},
		{"{score} > 700 or {amount} > 1000", true},
		{"{score} > 700 or {amount} < 1000", false},
		// and связывает сильнее or
		{"{score} > 700 and {amount} > 1000 or {score} == 650", true},
		{"({score} > 700 or {score} == 650) and {amount} > 1000", true},
	}

	for _, c := range cases {
		got, err := Evaluate(c.expr, vars)
		if err != nil {
			t.Errorf("Evaluate(%q): unexpected error: %v", c.expr, err)
			continue
		}
		if got != c.want {
			t.Errorf("Evaluate(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvaluate_UndeclaredVariable(t *testing.T) {
	// Необъявленная переменная — ошибка, а не тихое false
	_, err := Evaluate("{score} < 700", map[string]any{})
	if err == nil {
		t.Fatal("expected error for undeclared variable")
	}
	if !errors.Is(err, ErrInvalidExpression) {
		t.Errorf("expected ErrInvalidExpression, got %v", err)
	}

	var exprErr *InvalidExpressionError
	if !errors.As(err, &exprErr) {
		t.Fatalf("expected *InvalidExpressionError, got %T", err)
	}
}

func TestEvaluate_TypeMismatch(t *testing.T) {
	vars := map[string]any{"score": 650, "name": "alice"}

	for _, expr := range []string{
		"{score} == {name}",
		"{name} > 100",
		"{score} == 'alice'",
	} {
		if _, err := Evaluate(expr, vars); !errors.Is(err, ErrInvalidExpression) {
			t.Errorf("Evaluate(%q): expected ErrInvalidExpression, got %v", expr, err)
		}
	}
}

func TestEvaluate_BooleansAreNotOrdered(t *testing.T) {
	vars := map[string]any{"vip": true}
	if _, err := Evaluate("{vip} > false", vars); !errors.Is(err, ErrInvalidExpression) {
		t.Errorf("expected ErrInvalidExpression for ordered bool comparison, got %v", err)
	}
}

func TestEvaluate_MalformedExpressions(t *testing.T) {
	vars := map[string]any{"score": 650}

	for _, expr := range []string{
		"",
		"{score}",
		"{score} <",
		"{score 700",
		"{} < 700",
		"score < 700",
		"{score} = 700",
		"{score} < 700 and",
		"({score} < 700",
		"{score} < 700)",
		"'unterminated < 700",
		"{score} ** 2 > 100",
	} {
		if _, err := Evaluate(expr, vars); !errors.Is(err, ErrInvalidExpression) {
			t.Errorf("Evaluate(%q): expected ErrInvalidExpression, got %v", expr, err)
		}
	}
}

func TestEvaluate_NumericCoercion(t *testing.T) {
	// Значения из JSON приходят как float64, из Go-кода — как int
	cases := []struct {
		val any
	}{
		{650}, {int64(650)}, {int32(650)}, {float64(650)}, {float32(650)}, {uint(650)},
	}

	for _, c := range cases {
		got, err := Evaluate("{score} < 700", map[string]any{"score": c.val})
		if err != nil {
			t.Errorf("score=%T: unexpected error: %v", c.val, err)
			continue
		}
		if !got {
			t.Errorf("score=%T: expected true", c.val)
		}
	}
}

func TestEvaluate_NegativeNumbers(t *testing.T) {
	got, err := Evaluate("{delta} < -5", map[string]any{"delta": -10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("expected -10 < -5 to be true")
	}
}
