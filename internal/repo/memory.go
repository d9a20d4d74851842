package repo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/domain"
)

// MemoryWorkflowStore — хранилище определений в памяти.
type MemoryWorkflowStore struct {
	mu   sync.RWMutex
	defs map[string]*domain.WorkflowDefinition
}

// NewMemoryWorkflowStore создаёт пустое хранилище определений.
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{defs: make(map[string]*domain.WorkflowDefinition)}
}

// Save реализует WorkflowStore.
func (s *MemoryWorkflowStore) Save(_ context.Context, def *domain.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.ID] = def
	return nil
}

// Get реализует WorkflowStore.
func (s *MemoryWorkflowStore) Get(_ context.Context, id string) (*domain.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return def, nil
}

// List реализует WorkflowStore.
func (s *MemoryWorkflowStore) List(_ context.Context) ([]*domain.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := make([]*domain.WorkflowDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		defs = append(defs, def)
	}
	return defs, nil
}

// MemoryExecutionStore — журнал executions в памяти.
type MemoryExecutionStore struct {
	mu    sync.RWMutex
	snaps map[uuid.UUID]*domain.ExecutionSnapshot
}

// NewMemoryExecutionStore создаёт пустой журнал.
func NewMemoryExecutionStore() *MemoryExecutionStore {
	return &MemoryExecutionStore{snaps: make(map[uuid.UUID]*domain.ExecutionSnapshot)}
}

// Save реализует ExecutionStore.
func (s *MemoryExecutionStore) Save(_ context.Context, snap *domain.ExecutionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.ExecutionID] = snap
	return nil
}

// Get реализует ExecutionStore.
func (s *MemoryExecutionStore) Get(_ context.Context, executionID uuid.UUID) (*domain.ExecutionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[executionID]
	if !ok {
		return nil, ErrNotFound
	}
	return snap, nil
}

// List реализует ExecutionStore.
func (s *MemoryExecutionStore) List(_ context.Context, status domain.ExecutionStatus) ([]*domain.ExecutionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := make([]*domain.ExecutionSnapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		if status != "" && snap.Status != status {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
