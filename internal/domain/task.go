package domain

import (
	"time"

	"github.com/google/uuid"
)

// HumanTask — дескриптор приостановки на HUMAN_TASK-узле.
//
// Создаётся при первом входе токена в HUMAN_TASK и публикуется во
// внешний Task Inbox. Токен стоит на узле, пока внешняя сторона не
// вызовет CompleteTask с ответами; ответы вливаются в переменные
// execution, после чего токен продвигается дальше.
type HumanTask struct {
	// TaskID — уникальный идентификатор задачи.
	TaskID uuid.UUID `json:"task_id"`

	// WorkflowID — ID определения workflow.
	WorkflowID string `json:"workflow_id"`

	// ExecutionID — execution, которому принадлежит задача.
	ExecutionID uuid.UUID `json:"execution_id"`

	// NodeID — HUMAN_TASK-узел, породивший задачу.
	NodeID string `json:"node_id"`

	// Name — имя узла (для отображения).
	Name string `json:"name,omitempty"`

	// Assignee — исполнитель.
	Assignee string `json:"assignee,omitempty"`

	// FormFields — поля формы, которые нужно заполнить.
	FormFields []FormField `json:"form_fields,omitempty"`

	// DueDate — срок выполнения.
	DueDate *time.Time `json:"due_date,omitempty"`

	// Priority — приоритет задачи.
	Priority TaskPriority `json:"priority,omitempty"`

	// CreatedAt — время создания задачи.
	CreatedAt time.Time `json:"created_at"`
}

// IsOverdue возвращает true, если срок задачи истёк к моменту now.
func (t *HumanTask) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && now.After(*t.DueDate)
}
