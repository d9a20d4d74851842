package domain

// ExecutionStatus — статус выполнения workflow.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	        ⇄ WAITING (пока все живые токены приостановлены)
//	          (или) → CANCELLED (по внешней команде)
type ExecutionStatus string

const (
	// ExecutionStatusPending — execution создан, но ещё не начал выполняться.
	ExecutionStatusPending ExecutionStatus = "PENDING"

	// ExecutionStatusRunning — хотя бы один токен продвигается по графу.
	ExecutionStatusRunning ExecutionStatus = "RUNNING"

	// ExecutionStatusWaiting — все живые токены приостановлены
	// (human task, таймер или join-барьер).
	ExecutionStatusWaiting ExecutionStatus = "WAITING"

	// ExecutionStatusCompleted — последний токен достиг END-узла.
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"

	// ExecutionStatusFailed — токен завершился с ошибкой, остальные отменены.
	ExecutionStatusFailed ExecutionStatus = "FAILED"

	// ExecutionStatusCancelled — execution отменён пользователем.
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (execution завершён).
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// RecordStatus — статус одного посещения узла (NodeExecutionRecord).
//
// Жизненный цикл:
//
//	RUNNING → COMPLETED
//	        ↘ FAILED
//	        ↘ WAITING (human task / таймер) → COMPLETED | FAILED
type RecordStatus string

const (
	// RecordStatusRunning — узел выполняется.
	RecordStatusRunning RecordStatus = "RUNNING"

	// RecordStatusCompleted — узел успешно завершён.
	RecordStatusCompleted RecordStatus = "COMPLETED"

	// RecordStatusFailed — узел завершился с ошибкой.
	RecordStatusFailed RecordStatus = "FAILED"

	// RecordStatusWaiting — узел ждёт внешнего события
	// (ответ человека или истечение таймера).
	RecordStatusWaiting RecordStatus = "WAITING"
)

// IsTerminal возвращает true, если статус финальный.
func (s RecordStatus) IsTerminal() bool {
	switch s {
	case RecordStatusCompleted, RecordStatusFailed:
		return true
	default:
		return false
	}
}

// TaskPriority — приоритет human task.
type TaskPriority int

// Приоритеты по возрастанию важности.
const (
	PriorityLow      TaskPriority = 1
	PriorityNormal   TaskPriority = 3
	PriorityHigh     TaskPriority = 5
	PriorityCritical TaskPriority = 7
	PriorityUrgent   TaskPriority = 9
)

// String возвращает строковое представление приоритета.
func (p TaskPriority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	case PriorityUrgent:
		return "URGENT"
	default:
		return "NORMAL"
	}
}
