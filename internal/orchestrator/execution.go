package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// waitingTask — токен, приостановленный на HUMAN_TASK-узле.
type waitingTask struct {
	token  uuid.UUID
	task   *domain.HumanTask
	record *domain.NodeExecutionRecord
}

// pendingTimer — токен, приостановленный на TIMER-узле.
type pendingTimer struct {
	nodeID string
	cancel func()
	record *domain.NodeExecutionRecord
}

// joinBarrier — накопитель прибытий на PARALLEL_JOIN.
// Ключ — узел-источник входящего ребра: барьер считает РАЗЛИЧНЫЕ рёбра.
type joinBarrier struct {
	arrived map[string]bool
}

// execution — машина состояний одного запуска workflow.
//
// Инварианты учёта токенов (под mu):
//   - live — токены, ещё не уничтоженные (END, поглощение join-ом,
//     провал/отмена execution);
//   - active — токены, продвигающиеся прямо сейчас (горутина работает);
//   - active == 0 — точка покоя: WAITING при live > 0, иначе финал.
//
// Точки приостановки (шлюз, human task, таймер, барьер) mu не держат.
type execution struct {
	engine *Engine
	def    *domain.WorkflowDefinition
	ectx   *domain.ExecutionContext
	logger *slog.Logger

	// runCtx отменяется при провале или отмене execution:
	// прерывает вызовы шлюза и ожидания между повторами.
	runCtx    context.Context
	cancelRun context.CancelFunc

	mu   sync.Mutex
	cond *sync.Cond

	status      domain.ExecutionStatus
	records     []*domain.NodeExecutionRecord
	live        int
	active      int
	waiting     map[string]*waitingTask    // nodeID → приостановка
	timers      map[uuid.UUID]pendingTimer // tokenID → таймер
	joins       map[string]*joinBarrier    // nodeID → барьер
	failedNode  string
	errMsg      string
	completedAt *time.Time
}

// newExecution создаёт execution в статусе PENDING.
func newExecution(e *Engine, def *domain.WorkflowDefinition, ectx *domain.ExecutionContext) *execution {
	runCtx, cancelRun := context.WithCancel(context.Background())

	x := &execution{
		engine:    e,
		def:       def,
		ectx:      ectx,
		runCtx:    runCtx,
		cancelRun: cancelRun,
		status:    domain.ExecutionStatusPending,
		waiting:   make(map[string]*waitingTask),
		timers:    make(map[uuid.UUID]pendingTimer),
		joins:     make(map[string]*joinBarrier),
		logger: telemetry.WithExecutionID(
			telemetry.WithWorkflowID(e.logger, def.ID),
			ectx.ExecutionID.String()),
	}
	x.cond = sync.NewCond(&x.mu)
	return x
}

// start переводит execution в RUNNING и выпускает первый токен на START.
func (x *execution) start() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.status = domain.ExecutionStatusRunning
	x.spawnLocked("", x.def.StartNode().ID)
}

// spawnLocked выпускает новый токен на узле nodeID. Вызывается под mu.
func (x *execution) spawnLocked(from, nodeID string) {
	tok := uuid.New()
	x.live++
	x.active++
	go x.advance(tok, from, nodeID)
}

// advance — горутина продвижения одного токена.
// from — узел, с которого токен пришёл (нужен join-барьеру).
func (x *execution) advance(tok uuid.UUID, from, nodeID string) {
	for {
		if x.runCtx.Err() != nil {
			x.destroyToken()
			return
		}

		node := x.def.Node(nodeID)
		next, parked, err := x.executeNode(tok, from, node)
		if err != nil {
			x.fail(node.ID, err)
			x.destroyToken()
			return
		}
		if parked {
			x.parkToken()
			return
		}
		if next == "" {
			// END, поглощение join-ом или fan-out после fork
			x.destroyToken()
			return
		}
		from, nodeID = node.ID, next
	}
}

// parkToken учитывает приостановку токена (human task или таймер).
// Токен остаётся живым.
func (x *execution) parkToken() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.active--
	if x.active == 0 {
		if !x.status.IsTerminal() {
			x.status = domain.ExecutionStatusWaiting
		}
		x.cond.Broadcast()
	}
}

// destroyToken учитывает уничтожение токена.
//
// Последний живой токен закрывает execution: COMPLETED, если все
// барьеры разрешились, иначе FAILED (join, до которого не дойти, —
// следствие ветвления в обход fork-а).
func (x *execution) destroyToken() {
	x.mu.Lock()

	x.live--
	x.active--

	var finished bool
	if !x.status.IsTerminal() && x.live == 0 {
		now := time.Now()
		if len(x.joins) > 0 {
			x.status = domain.ExecutionStatusFailed
			for nodeID := range x.joins {
				x.failedNode = nodeID
				break
			}
			x.errMsg = "parallel join starved: no live token can reach it"
		} else {
			x.status = domain.ExecutionStatusCompleted
		}
		x.completedAt = &now
		finished = true
	}

	if x.active == 0 {
		if !x.status.IsTerminal() && x.live > 0 {
			x.status = domain.ExecutionStatusWaiting
		}
		x.cond.Broadcast()
	}

	status := x.status
	x.mu.Unlock()

	if finished {
		x.logger.Info("execution finished", "status", string(status))
		go x.engine.noteFinished(x.ectx.ExecutionID, x.def.ID, status)
	}
}

// waitIdle блокирует до точки покоя и возвращает статус в ней.
func (x *execution) waitIdle() domain.ExecutionStatus {
	x.mu.Lock()
	defer x.mu.Unlock()
	for x.active > 0 && !x.status.IsTerminal() {
		x.cond.Wait()
	}
	return x.status
}

// fail переводит execution в FAILED (первый провал побеждает) и
// каскадно отменяет остальные токены: контекст, таймеры, задачи.
func (x *execution) fail(nodeID string, err error) {
	x.terminate(domain.ExecutionStatusFailed, nodeID, err.Error())
}

// cancel отменяет execution по внешней команде.
func (x *execution) cancel(ctx context.Context) error {
	x.mu.Lock()
	if x.status.IsTerminal() {
		x.mu.Unlock()
		return ErrExecutionFinished
	}
	x.mu.Unlock()

	x.terminate(domain.ExecutionStatusCancelled, "", "")
	x.logger.Info("execution cancelled")
	return nil
}

// terminate — общий путь FAILED/CANCELLED: фиксирует финальный статус,
// гасит таймеры, снимает ожидающие задачи, отменяет runCtx.
func (x *execution) terminate(status domain.ExecutionStatus, failedNode, errMsg string) {
	x.mu.Lock()
	if x.status.IsTerminal() {
		x.mu.Unlock()
		return
	}

	now := time.Now()
	x.status = status
	x.failedNode = failedNode
	x.errMsg = errMsg
	x.completedAt = &now

	timers := x.timers
	x.timers = make(map[uuid.UUID]pendingTimer)
	waiting := x.waiting
	x.waiting = make(map[string]*waitingTask)

	// Приостановленные токены уничтожаются вместе с execution.
	x.live -= len(timers) + len(waiting)

	for _, pt := range timers {
		pt.record.MarkFailed(ErrTimerCancelled.Error())
	}

	x.cond.Broadcast()
	x.mu.Unlock()

	x.cancelRun()

	for _, pt := range timers {
		pt.cancel()
	}
	for _, wt := range waiting {
		telemetry.WaitingTasks.Dec()
		if err := x.engine.inbox.Withdraw(context.Background(), wt.task.TaskID); err != nil {
			x.logger.Warn("withdraw task", "task_id", wt.task.TaskID, "error", err)
		}
	}

	if failedNode != "" {
		x.logger.Error("execution failed", "node_id", failedNode, "error", errMsg)
	}
	go x.engine.noteFinished(x.ectx.ExecutionID, x.def.ID, status)
}

// completeTask вливает ответы и возобновляет токен на HUMAN_TASK-узле.
func (x *execution) completeTask(ctx context.Context, nodeID string, answers map[string]any) error {
	x.mu.Lock()
	if x.status.IsTerminal() {
		x.mu.Unlock()
		return ErrExecutionFinished
	}

	wt, ok := x.waiting[nodeID]
	if !ok {
		x.mu.Unlock()
		return ErrUnknownTask
	}
	delete(x.waiting, nodeID)

	live := x.live
	for name, value := range answers {
		prev, overwritten := x.ectx.Set(name, value, wt.token)
		if overwritten && live > 1 {
			x.logger.Warn("concurrent variable write",
				"variable", name,
				"token_id", wt.token,
				"previous_writer", prev)
		}
	}
	wt.record.MarkCompleted(answers)

	next := x.def.Node(nodeID).Outgoing[0].To
	x.status = domain.ExecutionStatusRunning
	x.active++
	x.mu.Unlock()

	telemetry.WaitingTasks.Dec()
	if err := x.engine.inbox.Withdraw(ctx, wt.task.TaskID); err != nil {
		x.logger.Warn("withdraw task", "task_id", wt.task.TaskID, "error", err)
	}

	x.logger.Info("human task completed", "node_id", nodeID, "task_id", wt.task.TaskID)
	go x.advance(wt.token, nodeID, next)
	return nil
}

// fireTimer возобновляет токен по истечении таймера.
func (x *execution) fireTimer(tok uuid.UUID, nodeID, next string) {
	x.mu.Lock()
	pt, ok := x.timers[tok]
	if !ok || x.status.IsTerminal() {
		x.mu.Unlock()
		return
	}
	delete(x.timers, tok)

	pt.record.MarkCompleted(nil)
	x.status = domain.ExecutionStatusRunning
	x.active++
	x.mu.Unlock()

	x.logger.Debug("timer fired", "node_id", nodeID)
	x.advance(tok, nodeID, next)
}

// waitingTasks возвращает копию ожидающих human tasks.
func (x *execution) waitingTasks() []domain.HumanTask {
	x.mu.Lock()
	defer x.mu.Unlock()

	tasks := make([]domain.HumanTask, 0, len(x.waiting))
	for _, wt := range x.waiting {
		tasks = append(tasks, *wt.task)
	}
	return tasks
}

// summary строит сводку текущего состояния.
func (x *execution) summary() *domain.ExecutionSummary {
	x.mu.Lock()
	defer x.mu.Unlock()

	s := &domain.ExecutionSummary{
		ExecutionID:   x.ectx.ExecutionID,
		WorkflowID:    x.def.ID,
		Status:        x.status,
		StartedAt:     x.ectx.StartedAt,
		CompletedAt:   x.completedAt,
		NodesExecuted: len(x.records),
		FailedNode:    x.failedNode,
		Error:         x.errMsg,
		Variables:     x.ectx.Snapshot(),
	}
	for _, wt := range x.waiting {
		s.WaitingTasks = append(s.WaitingTasks, *wt.task)
	}
	return s
}

// snapshot строит долговечный снимок для журнала.
func (x *execution) snapshot() *domain.ExecutionSnapshot {
	x.mu.Lock()
	defer x.mu.Unlock()

	snap := &domain.ExecutionSnapshot{
		ExecutionID: x.ectx.ExecutionID,
		WorkflowID:  x.def.ID,
		UserID:      x.ectx.UserID,
		CompanyID:   x.ectx.CompanyID,
		Status:      x.status,
		Variables:   x.ectx.Snapshot(),
		FailedNode:  x.failedNode,
		Error:       x.errMsg,
		StartedAt:   x.ectx.StartedAt,
		CompletedAt: x.completedAt,
	}
	for _, r := range x.records {
		snap.Records = append(snap.Records, *r)
	}
	for nodeID, wt := range x.waiting {
		snap.Tokens = append(snap.Tokens, domain.TokenSnapshot{
			ID: wt.token, NodeID: nodeID, Status: "WAITING",
		})
	}
	for tok, pt := range x.timers {
		snap.Tokens = append(snap.Tokens, domain.TokenSnapshot{
			ID: tok, NodeID: pt.nodeID, Status: "WAITING",
		})
	}
	return snap
}

// journal записывает снимок в журнал (best-effort).
func (x *execution) journal(ctx context.Context) {
	if x.engine.executionStore == nil {
		return
	}
	if err := x.engine.executionStore.Save(ctx, x.snapshot()); err != nil {
		x.logger.Warn("journal execution", "error", err)
	}
}

// beginRecord регистрирует вход токена в узел.
func (x *execution) beginRecord(tok uuid.UUID, node *domain.Node, input map[string]any) *domain.NodeExecutionRecord {
	rec := &domain.NodeExecutionRecord{
		NodeID:    node.ID,
		TokenID:   tok,
		Status:    domain.RecordStatusRunning,
		StartedAt: time.Now(),
		Input:     input,
	}

	x.mu.Lock()
	x.records = append(x.records, rec)
	x.mu.Unlock()
	return rec
}
