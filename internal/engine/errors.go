package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки построения и валидации workflow.
var (
	// ErrInvalidWorkflow — определение не прошло структурную валидацию.
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrInvalidExpression — условие не разобрано или не вычислено.
	ErrInvalidExpression = errors.New("invalid expression")
)

// InvalidWorkflowError — ошибка валидации со списком всех нарушений.
//
// Валидация не останавливается на первом нарушении: автор workflow
// получает полный список проблем за один проход.
type InvalidWorkflowError struct {
	// WorkflowID — ID проверяемого определения.
	WorkflowID string

	// Violations — перечень нарушений структурных инвариантов.
	Violations []string
}

// Error реализует интерфейс error.
func (e *InvalidWorkflowError) Error() string {
	return fmt.Sprintf("workflow %s: %s", e.WorkflowID, strings.Join(e.Violations, "; "))
}

// Unwrap возвращает базовую ошибку.
func (e *InvalidWorkflowError) Unwrap() error {
	return ErrInvalidWorkflow
}

// InvalidExpressionError — ошибка разбора или вычисления условия.
type InvalidExpressionError struct {
	// Expr — исходное выражение.
	Expr string

	// Pos — позиция ошибки в выражении (байтовый offset).
	Pos int

	// Message — описание ошибки.
	Message string
}

// Error реализует интерфейс error.
func (e *InvalidExpressionError) Error() string {
	return fmt.Sprintf("expression %q: %s (at %d)", e.Expr, e.Message, e.Pos)
}

// Unwrap возвращает базовую ошибку.
func (e *InvalidExpressionError) Unwrap() error {
	return ErrInvalidExpression
}

// newExprError создаёт InvalidExpressionError.
func newExprError(expr string, pos int, format string, args ...any) *InvalidExpressionError {
	return &InvalidExpressionError{
		Expr:    expr,
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	}
}
