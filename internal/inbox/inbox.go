package inbox

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/domain"
)

// Inbox — приёмник human tasks.
//
// Publish вызывается при приостановке токена на HUMAN_TASK,
// Withdraw — при завершении задачи или отмене execution.
type Inbox interface {
	Publish(ctx context.Context, task *domain.HumanTask) error
	Withdraw(ctx context.Context, taskID uuid.UUID) error
}

// MemoryInbox — inbox в памяти.
type MemoryInbox struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.HumanTask
}

// NewMemoryInbox создаёт пустой MemoryInbox.
func NewMemoryInbox() *MemoryInbox {
	return &MemoryInbox{tasks: make(map[uuid.UUID]*domain.HumanTask)}
}

// Publish реализует Inbox.
func (m *MemoryInbox) Publish(_ context.Context, task *domain.HumanTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.TaskID] = task
	return nil
}

// Withdraw реализует Inbox.
func (m *MemoryInbox) Withdraw(_ context.Context, taskID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; !ok {
		return ErrTaskNotFound
	}
	delete(m.tasks, taskID)
	return nil
}

// Tasks возвращает текущее содержимое inbox.
func (m *MemoryInbox) Tasks() []domain.HumanTask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make([]domain.HumanTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks
}
