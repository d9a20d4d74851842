package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExecutionContext — контекст одного execution.
//
// Переменные — единственное состояние, видимое условиям DECISION и
// маппингам SERVICE_TASK. Карта переменных разделяется всеми токенами
// одного execution и защищена собственным мьютексом; записи конкурентных
// токенов разрешаются по принципу last-write-wins (см. Set).
type ExecutionContext struct {
	// WorkflowID — ID определения workflow.
	WorkflowID string `json:"workflow_id"`

	// ExecutionID — уникальный идентификатор execution.
	ExecutionID uuid.UUID `json:"execution_id"`

	// UserID — пользователь, запустивший execution.
	UserID string `json:"user_id"`

	// CompanyID — компания, в рамках которой идёт процесс.
	CompanyID string `json:"company_id"`

	// StartedAt — время старта execution.
	StartedAt time.Time `json:"started_at"`

	mu        sync.RWMutex
	variables map[string]any

	// writers — последний токен, записавший переменную.
	// Нужен для advisory-диагностики конкурентных записей.
	writers map[string]uuid.UUID
}

// NewExecutionContext создаёт контекст с начальными переменными.
func NewExecutionContext(workflowID string, executionID uuid.UUID, userID, companyID string, initial map[string]any) *ExecutionContext {
	vars := make(map[string]any, len(initial))
	for k, v := range initial {
		vars[k] = v
	}
	return &ExecutionContext{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		UserID:      userID,
		CompanyID:   companyID,
		StartedAt:   time.Now(),
		variables:   vars,
		writers:     make(map[string]uuid.UUID),
	}
}

// Get возвращает значение переменной.
func (c *ExecutionContext) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[name]
	return v, ok
}

// Set записывает переменную от имени токена writer.
// Возвращает ID предыдущего писателя и true, если переменная была
// перезаписана другим токеном (сигнал для advisory-предупреждения).
func (c *ExecutionContext) Set(name string, value any, writer uuid.UUID) (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, existed := c.writers[name]
	c.variables[name] = value
	c.writers[name] = writer

	overwritten := existed && prev != writer
	return prev, overwritten
}

// Snapshot возвращает копию карты переменных.
// DECISION читает условия именно по такому снимку, взятому на входе в узел.
func (c *ExecutionContext) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		snap[k] = v
	}
	return snap
}

// NodeExecutionRecord — запись одного посещения узла.
//
// Узел может иметь несколько записей, если его посещают разные токены.
type NodeExecutionRecord struct {
	// NodeID — ID посещённого узла.
	NodeID string `json:"node_id"`

	// TokenID — токен, выполнивший посещение.
	TokenID uuid.UUID `json:"token_id"`

	// Status — статус посещения.
	Status RecordStatus `json:"status"`

	// StartedAt — время входа в узел.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время выхода из узла.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// Input — снимок данных на входе в узел.
	Input map[string]any `json:"input,omitempty"`

	// Output — данные, произведённые узлом.
	Output map[string]any `json:"output,omitempty"`
}

// Duration возвращает продолжительность посещения.
func (r *NodeExecutionRecord) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// MarkCompleted переводит запись в COMPLETED с результатами.
func (r *NodeExecutionRecord) MarkCompleted(output map[string]any) {
	now := time.Now()
	r.Status = RecordStatusCompleted
	r.CompletedAt = &now
	r.Output = output
}

// MarkFailed переводит запись в FAILED с ошибкой.
func (r *NodeExecutionRecord) MarkFailed(errMsg string) {
	now := time.Now()
	r.Status = RecordStatusFailed
	r.CompletedAt = &now
	r.Error = errMsg
}

// MarkWaiting переводит запись в WAITING.
func (r *NodeExecutionRecord) MarkWaiting() {
	r.Status = RecordStatusWaiting
}

// TokenSnapshot — сериализуемое состояние живого токена.
type TokenSnapshot struct {
	// ID — идентификатор токена.
	ID uuid.UUID `json:"id"`

	// NodeID — узел, на котором находится токен.
	NodeID string `json:"node_id"`

	// Status — состояние: "RUNNING", "WAITING".
	Status string `json:"status"`
}

// ExecutionSnapshot — минимальная долговечная единица execution.
//
// Достаточна для восстановления после рестарта:
// контекст, записи посещений и состояние живых токенов.
type ExecutionSnapshot struct {
	ExecutionID uuid.UUID             `json:"execution_id"`
	WorkflowID  string                `json:"workflow_id"`
	UserID      string                `json:"user_id"`
	CompanyID   string                `json:"company_id"`
	Status      ExecutionStatus       `json:"status"`
	Variables   map[string]any        `json:"variables"`
	Records     []NodeExecutionRecord `json:"records"`
	Tokens      []TokenSnapshot       `json:"tokens,omitempty"`
	FailedNode  string                `json:"failed_node,omitempty"`
	Error       string                `json:"error,omitempty"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// ExecutionSummary — статус execution для внешнего потребителя.
type ExecutionSummary struct {
	ExecutionID   uuid.UUID       `json:"execution_id"`
	WorkflowID    string          `json:"workflow_id"`
	Status        ExecutionStatus `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	NodesExecuted int             `json:"nodes_executed"`

	// WaitingTasks — human tasks, ожидающие ответа (при WAITING).
	WaitingTasks []HumanTask `json:"waiting_tasks,omitempty"`

	// FailedNode и Error заполняются при FAILED.
	FailedNode string `json:"failed_node,omitempty"`
	Error      string `json:"error,omitempty"`

	// Variables — текущий снимок переменных.
	Variables map[string]any `json:"variables,omitempty"`
}
