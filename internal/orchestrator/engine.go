package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/engine"
	"github.com/shaiso/Maestro/internal/gateway"
	"github.com/shaiso/Maestro/internal/inbox"
	"github.com/shaiso/Maestro/internal/repo"
	"github.com/shaiso/Maestro/internal/telemetry"
	"github.com/shaiso/Maestro/internal/timer"
)

// Default configuration values.
const defaultHistoryLimit = 1000

// Engine — реестр определений и контрольная поверхность движка.
//
// Engine:
//   - Регистрирует определения workflow (с полной валидацией)
//   - Запускает executions и доводит их до точки покоя
//   - Принимает завершения human tasks и отмены
//   - Отдаёт статусы и список ожидающих задач
type Engine struct {
	// Registry
	workflows  map[string]*domain.WorkflowDefinition
	executions map[uuid.UUID]*execution

	// finished — порядок завершения для вытеснения старой истории.
	finished []uuid.UUID
	mu       sync.RWMutex

	// Collaborators
	gateway gateway.Gateway
	retry   gateway.RetryPolicy
	inbox   inbox.Inbox
	timers  timer.Source

	// Persistence (best-effort journaling; nil допустим)
	workflowStore  repo.WorkflowStore
	executionStore repo.ExecutionStore

	historyLimit int
	logger       *slog.Logger
}

// Config — конфигурация Engine.
type Config struct {
	// Gateway — шлюз интеграций для SERVICE_TASK (default: LocalGateway).
	Gateway gateway.Gateway

	// Retry — политика повторов вызовов шлюза (default: fail fast).
	Retry gateway.RetryPolicy

	// Inbox — приёмник human tasks (default: MemoryInbox).
	Inbox inbox.Inbox

	// Timers — источник отложенных срабатываний (default: timer.Clock).
	Timers timer.Source

	// WorkflowStore — хранилище определений (nil — только память).
	WorkflowStore repo.WorkflowStore

	// ExecutionStore — журнал executions (nil — только память).
	ExecutionStore repo.ExecutionStore

	// HistoryLimit — сколько завершённых executions держать в памяти
	// (default: 1000).
	HistoryLimit int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	if cfg.Gateway == nil {
		cfg.Gateway = gateway.NewLocalGateway()
	}
	if cfg.Inbox == nil {
		cfg.Inbox = inbox.NewMemoryInbox()
	}
	if cfg.Timers == nil {
		cfg.Timers = timer.Clock{}
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		workflows:      make(map[string]*domain.WorkflowDefinition),
		executions:     make(map[uuid.UUID]*execution),
		gateway:        cfg.Gateway,
		retry:          cfg.Retry,
		inbox:          cfg.Inbox,
		timers:         cfg.Timers,
		workflowStore:  cfg.WorkflowStore,
		executionStore: cfg.ExecutionStore,
		historyLimit:   cfg.HistoryLimit,
		logger:         cfg.Logger,
	}
}

// RegisterWorkflow регистрирует определение workflow.
//
// Определение проходит полную структурную валидацию; при нарушениях
// возвращается InvalidWorkflowError со ВСЕМИ диагностиками.
// Повторная регистрация с тем же ID заменяет определение только для
// новых executions — запущенные продолжают со своим снимком.
func (e *Engine) RegisterWorkflow(ctx context.Context, def *domain.WorkflowDefinition) error {
	if violations := engine.Validate(def); len(violations) > 0 {
		return &engine.InvalidWorkflowError{WorkflowID: def.ID, Violations: violations}
	}

	e.mu.Lock()
	e.workflows[def.ID] = def
	e.mu.Unlock()

	if e.workflowStore != nil {
		if err := e.workflowStore.Save(ctx, def); err != nil {
			e.logger.Warn("save workflow definition",
				"workflow_id", def.ID,
				"error", err)
		}
	}

	e.logger.Info("workflow registered",
		"workflow_id", def.ID,
		"version", def.Version,
		"nodes", len(def.Nodes))
	return nil
}

// LoadRegistered подгружает сохранённые определения из WorkflowStore.
// Вызывается при старте демона для переживания рестартов.
func (e *Engine) LoadRegistered(ctx context.Context) (int, error) {
	if e.workflowStore == nil {
		return 0, nil
	}

	defs, err := e.workflowStore.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list workflows: %w", err)
	}

	e.mu.Lock()
	for _, def := range defs {
		e.workflows[def.ID] = def
	}
	e.mu.Unlock()
	return len(defs), nil
}

// StartWorkflow запускает новый execution.
//
// Подставляет значения по умолчанию из объявлений переменных и
// проверяет обязательные; блокирует до первой точки покоя (WAITING
// или финальный статус), после чего возвращает ID execution.
func (e *Engine) StartWorkflow(ctx context.Context, workflowID, userID, companyID string, vars map[string]any) (uuid.UUID, error) {
	e.mu.RLock()
	def, ok := e.workflows[workflowID]
	e.mu.RUnlock()
	if !ok {
		return uuid.Nil, fmt.Errorf("workflow %q: %w", workflowID, ErrUnknownWorkflow)
	}

	seeded, err := seedVariables(def, vars)
	if err != nil {
		return uuid.Nil, err
	}

	executionID := uuid.New()
	ectx := domain.NewExecutionContext(workflowID, executionID, userID, companyID, seeded)
	exec := newExecution(e, def, ectx)

	e.mu.Lock()
	e.executions[executionID] = exec
	e.mu.Unlock()

	telemetry.ExecutionsStarted.WithLabelValues(workflowID).Inc()
	exec.logger.Info("execution started", "user_id", userID, "company_id", companyID)

	exec.start()
	status := exec.waitIdle()
	exec.journal(ctx)

	exec.logger.Debug("execution reached quiescence", "status", string(status))
	return executionID, nil
}

// CompleteTask завершает human task и продвигает приостановленный токен.
//
// answers вливаются в переменные execution; возвращает управление
// после следующей точки покоя.
func (e *Engine) CompleteTask(ctx context.Context, executionID uuid.UUID, nodeID string, answers map[string]any) error {
	exec, err := e.lookup(executionID)
	if err != nil {
		return err
	}

	if err := exec.completeTask(ctx, nodeID, answers); err != nil {
		return err
	}

	exec.waitIdle()
	exec.journal(ctx)
	return nil
}

// CancelExecution отменяет execution: статус CANCELLED, все живые
// токены, таймеры и ожидающие задачи отменяются.
func (e *Engine) CancelExecution(ctx context.Context, executionID uuid.UUID) error {
	exec, err := e.lookup(executionID)
	if err != nil {
		return err
	}

	if err := exec.cancel(ctx); err != nil {
		return err
	}

	exec.waitIdle()
	exec.journal(ctx)
	return nil
}

// GetExecutionStatus возвращает сводку execution.
//
// Для FAILED сводка содержит узел и текст ошибки, для WAITING —
// список ожидающих human tasks. Завершённые executions, вытесненные
// из памяти, поднимаются из журнала.
func (e *Engine) GetExecutionStatus(ctx context.Context, executionID uuid.UUID) (*domain.ExecutionSummary, error) {
	e.mu.RLock()
	exec, ok := e.executions[executionID]
	e.mu.RUnlock()
	if ok {
		return exec.summary(), nil
	}

	if e.executionStore != nil {
		snap, err := e.executionStore.Get(ctx, executionID)
		if err == nil {
			return summaryFromSnapshot(snap), nil
		}
	}
	return nil, fmt.Errorf("execution %s: %w", executionID, ErrUnknownExecution)
}

// ListWaitingTasks возвращает все human tasks, ожидающие завершения.
// Непустой assignee фильтрует по исполнителю.
func (e *Engine) ListWaitingTasks(assignee string) []domain.HumanTask {
	e.mu.RLock()
	execs := make([]*execution, 0, len(e.executions))
	for _, exec := range e.executions {
		execs = append(execs, exec)
	}
	e.mu.RUnlock()

	var tasks []domain.HumanTask
	for _, exec := range execs {
		for _, task := range exec.waitingTasks() {
			if assignee != "" && task.Assignee != assignee {
				continue
			}
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// lookup находит execution по ID.
func (e *Engine) lookup(executionID uuid.UUID) (*execution, error) {
	e.mu.RLock()
	exec, ok := e.executions[executionID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("execution %s: %w", executionID, ErrUnknownExecution)
	}
	return exec, nil
}

// noteFinished учитывает завершение execution и вытесняет старую
// историю сверх лимита. Вытесненные остаются доступны через журнал.
func (e *Engine) noteFinished(executionID uuid.UUID, workflowID string, status domain.ExecutionStatus) {
	telemetry.ExecutionsFinished.WithLabelValues(workflowID, string(status)).Inc()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.finished = append(e.finished, executionID)
	for len(e.finished) > e.historyLimit {
		evicted := e.finished[0]
		e.finished = e.finished[1:]
		delete(e.executions, evicted)
	}
}

// seedVariables строит начальную карту переменных execution:
// переданные значения + значения по умолчанию из объявлений.
// Отсутствие обязательной переменной без default — ошибка старта.
func seedVariables(def *domain.WorkflowDefinition, vars map[string]any) (map[string]any, error) {
	seeded := make(map[string]any, len(vars)+len(def.Variables))
	for k, v := range vars {
		seeded[k] = v
	}

	for name, decl := range def.Variables {
		if _, ok := seeded[name]; ok {
			continue
		}
		if decl.Default != nil {
			seeded[name] = decl.Default
			continue
		}
		if decl.Required {
			return nil, fmt.Errorf("variable %q is required: %w", name, ErrMissingVariable)
		}
	}
	return seeded, nil
}

// summaryFromSnapshot строит сводку по журнальному снимку.
func summaryFromSnapshot(snap *domain.ExecutionSnapshot) *domain.ExecutionSummary {
	return &domain.ExecutionSummary{
		ExecutionID:   snap.ExecutionID,
		WorkflowID:    snap.WorkflowID,
		Status:        snap.Status,
		StartedAt:     snap.StartedAt,
		CompletedAt:   snap.CompletedAt,
		NodesExecuted: len(snap.Records),
		FailedNode:    snap.FailedNode,
		Error:         snap.Error,
		Variables:     snap.Variables,
	}
}
