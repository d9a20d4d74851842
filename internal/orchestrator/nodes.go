package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/engine"
	"github.com/shaiso/Maestro/internal/gateway"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// executeNode выполняет один узел от имени токена.
//
// Возвращает ID следующего узла (пустой — токен уничтожается),
// признак приостановки и ошибку. from — узел прибытия (для join).
func (x *execution) executeNode(tok uuid.UUID, from string, node *domain.Node) (next string, parked bool, err error) {
	started := time.Now()

	switch node.Kind {
	case domain.NodeKindStart:
		next, err = x.runStart(tok, node)
	case domain.NodeKindEnd:
		err = x.runEnd(tok, node)
	case domain.NodeKindServiceTask:
		next, err = x.runServiceTask(tok, node)
	case domain.NodeKindDecision:
		next, err = x.runDecision(tok, node)
	case domain.NodeKindHumanTask:
		parked, err = x.runHumanTask(tok, node)
	case domain.NodeKindTimer:
		parked, err = x.runTimer(tok, node)
	case domain.NodeKindFork:
		err = x.runFork(tok, node)
	case domain.NodeKindJoin:
		next, err = x.runJoin(tok, from, node)
	default:
		err = fmt.Errorf("node %q: unsupported kind %q", node.ID, node.Kind)
	}

	outcome := string(domain.RecordStatusCompleted)
	switch {
	case err != nil:
		outcome = string(domain.RecordStatusFailed)
	case parked:
		outcome = string(domain.RecordStatusWaiting)
	}
	telemetry.NodeExecutions.WithLabelValues(string(node.Kind), outcome).Inc()
	if !parked {
		telemetry.NodeDuration.WithLabelValues(string(node.Kind)).Observe(time.Since(started).Seconds())
	}
	return next, parked, err
}

// runStart фиксирует вход и передаёт токен единственному преемнику.
func (x *execution) runStart(tok uuid.UUID, node *domain.Node) (string, error) {
	rec := x.beginRecord(tok, node, nil)
	rec.MarkCompleted(nil)
	return node.Outgoing[0].To, nil
}

// runEnd уничтожает токен. Последний живой токен закрывает execution.
func (x *execution) runEnd(tok uuid.UUID, node *domain.Node) error {
	rec := x.beginRecord(tok, node, nil)
	rec.MarkCompleted(nil)
	return nil
}

// runServiceTask собирает payload по input mapping, вызывает шлюз
// (с политикой повторов) и вливает результат по output mapping.
func (x *execution) runServiceTask(tok uuid.UUID, node *domain.Node) (string, error) {
	payload := make(map[string]any, len(node.InputMapping))
	for key, varName := range node.InputMapping {
		value, ok := x.ectx.Get(varName)
		if !ok {
			return "", fmt.Errorf("service task %q: input %q: variable %q: %w",
				node.ID, key, varName, ErrMissingVariable)
		}
		payload[key] = value
	}

	rec := x.beginRecord(tok, node, payload)
	x.logger.Debug("invoking service",
		"node_id", node.ID,
		"service", node.ServiceName,
		"operation", node.Operation)

	result, err := gateway.Invoke(x.runCtx, x.engine.gateway, x.engine.retry,
		node.ServiceName, node.Operation, payload)
	if err != nil {
		telemetry.GatewayCalls.WithLabelValues(node.ServiceName, "error").Inc()
		rec.MarkFailed(err.Error())
		return "", err
	}
	telemetry.GatewayCalls.WithLabelValues(node.ServiceName, "ok").Inc()

	x.mu.Lock()
	live := x.live
	x.mu.Unlock()
	for key, varName := range node.OutputMapping {
		value, ok := result[key]
		if !ok {
			continue
		}
		prev, overwritten := x.ectx.Set(varName, value, tok)
		if overwritten && live > 1 {
			x.logger.Warn("concurrent variable write",
				"variable", varName,
				"node_id", node.ID,
				"token_id", tok,
				"previous_writer", prev)
		}
	}

	rec.MarkCompleted(result)
	return node.Outgoing[0].To, nil
}

// runDecision выбирает маршрут по снимку переменных, взятому на входе.
//
// Условные рёбра проверяются в порядке объявления; ни одно не сошлось —
// маршрут по умолчанию; его нет — ErrNoViableRoute. Ошибка вычисления
// условия проваливает execution, а не трактуется как false.
func (x *execution) runDecision(tok uuid.UUID, node *domain.Node) (string, error) {
	snap := x.ectx.Snapshot()
	rec := x.beginRecord(tok, node, snap)

	for _, e := range node.ConditionalEdges() {
		ok, err := engine.Evaluate(e.Condition, snap)
		if err != nil {
			rec.MarkFailed(err.Error())
			return "", fmt.Errorf("decision %q: %w", node.ID, err)
		}
		if ok {
			rec.MarkCompleted(map[string]any{"route": e.To, "condition": e.Condition})
			return e.To, nil
		}
	}

	if def := node.DefaultEdge(); def != nil {
		rec.MarkCompleted(map[string]any{"route": def.To})
		return def.To, nil
	}

	err := fmt.Errorf("decision %q: %w", node.ID, ErrNoViableRoute)
	rec.MarkFailed(err.Error())
	return "", err
}

// runHumanTask публикует дескриптор задачи в Inbox и паркует токен.
// Возобновление — только через CompleteTask.
func (x *execution) runHumanTask(tok uuid.UUID, node *domain.Node) (bool, error) {
	rec := x.beginRecord(tok, node, nil)

	priority := node.Priority
	if priority == 0 {
		priority = domain.PriorityNormal
	}
	task := &domain.HumanTask{
		TaskID:      uuid.New(),
		WorkflowID:  x.def.ID,
		ExecutionID: x.ectx.ExecutionID,
		NodeID:      node.ID,
		Name:        node.Name,
		Assignee:    node.Assignee,
		FormFields:  node.FormFields,
		DueDate:     node.DueDate,
		Priority:    priority,
		CreatedAt:   time.Now(),
	}

	x.mu.Lock()
	if _, occupied := x.waiting[node.ID]; occupied {
		x.mu.Unlock()
		err := fmt.Errorf("human task %q: node already has a waiting token", node.ID)
		rec.MarkFailed(err.Error())
		return false, err
	}
	rec.MarkWaiting()
	x.waiting[node.ID] = &waitingTask{token: tok, task: task, record: rec}
	x.mu.Unlock()

	telemetry.WaitingTasks.Inc()
	if err := x.engine.inbox.Publish(x.runCtx, task); err != nil {
		x.logger.Warn("publish task", "task_id", task.TaskID, "error", err)
	}

	x.logger.Info("human task created",
		"node_id", node.ID,
		"task_id", task.TaskID,
		"assignee", node.Assignee)
	return true, nil
}

// runTimer паркует токен до истечения Duration. Приостановка
// отменяема: провал или отмена execution гасит таймер.
func (x *execution) runTimer(tok uuid.UUID, node *domain.Node) (bool, error) {
	rec := x.beginRecord(tok, node, nil)
	next := node.Outgoing[0].To

	x.mu.Lock()
	if x.status.IsTerminal() {
		x.mu.Unlock()
		rec.MarkFailed(ErrTimerCancelled.Error())
		return false, ErrTimerCancelled
	}
	rec.MarkWaiting()
	cancel := x.engine.timers.After(node.Duration, func() {
		x.fireTimer(tok, node.ID, next)
	})
	x.timers[tok] = pendingTimer{nodeID: node.ID, cancel: cancel, record: rec}
	x.mu.Unlock()

	x.logger.Debug("timer armed", "node_id", node.ID, "duration", node.Duration)
	return true, nil
}

// runFork выпускает по токену на каждое исходящее ребро.
// Дети выпускаются до уничтожения текущего токена, чтобы execution
// не наблюдался без живых токенов посреди fan-out.
func (x *execution) runFork(tok uuid.UUID, node *domain.Node) error {
	rec := x.beginRecord(tok, node, nil)

	x.mu.Lock()
	for _, e := range node.Outgoing {
		x.spawnLocked(node.ID, e.To)
	}
	x.mu.Unlock()

	rec.MarkCompleted(nil)
	x.logger.Debug("fork spawned tokens", "node_id", node.ID, "count", len(node.Outgoing))
	return nil
}

// runJoin накапливает прибытия с различных входящих рёбер.
//
// Барьер выпускает ровно один токен-преемник, когда доставили все
// len(Incoming) рёбер; повторное прибытие с того же ребра —
// структурная ошибка ErrDuplicateJoinArrival.
func (x *execution) runJoin(tok uuid.UUID, from string, node *domain.Node) (string, error) {
	rec := x.beginRecord(tok, node, map[string]any{"arrived_from": from})

	x.mu.Lock()
	b := x.joins[node.ID]
	if b == nil {
		b = &joinBarrier{arrived: make(map[string]bool)}
		x.joins[node.ID] = b
	}
	if b.arrived[from] {
		x.mu.Unlock()
		err := fmt.Errorf("join %q: edge from %q: %w", node.ID, from, ErrDuplicateJoinArrival)
		rec.MarkFailed(err.Error())
		return "", err
	}
	b.arrived[from] = true
	released := len(b.arrived) == node.ExpectedArrivals()
	if released {
		delete(x.joins, node.ID)
	}
	x.mu.Unlock()

	rec.MarkCompleted(map[string]any{"released": released})
	if released {
		x.logger.Debug("join released", "node_id", node.ID)
		return node.Outgoing[0].To, nil
	}
	return "", nil
}
