package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/domain"
)

// WorkflowStore — хранилище определений workflow.
//
// Движок работает и без хранилища: оно нужно для переживания рестартов
// (регистрации подгружаются при старте) и аудита.
type WorkflowStore interface {
	// Save сохраняет определение; повторное сохранение с тем же ID
	// заменяет предыдущую версию.
	Save(ctx context.Context, def *domain.WorkflowDefinition) error

	// Get возвращает определение по ID или ErrNotFound.
	Get(ctx context.Context, id string) (*domain.WorkflowDefinition, error)

	// List возвращает все сохранённые определения.
	List(ctx context.Context) ([]*domain.WorkflowDefinition, error)
}

// ExecutionStore — журнал состояния executions.
//
// Запись best-effort: ошибки журнала логируются, но не прерывают
// выполнение. Снимок содержит долговечную единицу execution:
// контекст, записи посещений и живые токены.
type ExecutionStore interface {
	// Save записывает снимок состояния execution.
	Save(ctx context.Context, snap *domain.ExecutionSnapshot) error

	// Get возвращает снимок по ID или ErrNotFound.
	Get(ctx context.Context, executionID uuid.UUID) (*domain.ExecutionSnapshot, error)

	// List возвращает снимки, опционально отфильтрованные по статусу
	// (пустой статус — все).
	List(ctx context.Context, status domain.ExecutionStatus) ([]*domain.ExecutionSnapshot, error)
}
