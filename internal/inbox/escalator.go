package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// cronParser — парсер cron-выражений расписания обхода.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// defaultSweepExpr — обход раз в минуту.
const defaultSweepExpr = "* * * * *"

// TaskLister — источник ожидающих задач (реализуется Engine-ом).
type TaskLister interface {
	ListWaitingTasks(assignee string) []domain.HumanTask
}

// Escalator периодически обходит ожидающие human tasks и фиксирует
// просроченные: пишет в лог и инкрементирует счётчик. Доставка
// уведомлений — забота внешних систем.
type Escalator struct {
	lister   TaskLister
	schedule cron.Schedule
	logger   *slog.Logger

	// seen — задачи, уже учтённые как просроченные.
	seen map[uuid.UUID]bool
}

// EscalatorConfig — конфигурация Escalator.
type EscalatorConfig struct {
	// Lister — источник ожидающих задач.
	Lister TaskLister

	// CronExpr — расписание обхода (default: раз в минуту).
	CronExpr string

	// Logger
	Logger *slog.Logger
}

// NewEscalator создаёт Escalator.
func NewEscalator(cfg EscalatorConfig) (*Escalator, error) {
	expr := cfg.CronExpr
	if expr == "" {
		expr = defaultSweepExpr
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Escalator{
		lister:   cfg.Lister,
		schedule: schedule,
		logger:   cfg.Logger,
		seen:     make(map[uuid.UUID]bool),
	}, nil
}

// Run выполняет обходы по расписанию до отмены контекста.
func (e *Escalator) Run(ctx context.Context) error {
	for {
		next := e.schedule.Next(time.Now())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		e.Sweep(time.Now())
	}
}

// Sweep выполняет один обход: находит просроченные задачи.
// Возвращает количество впервые обнаруженных.
func (e *Escalator) Sweep(now time.Time) int {
	tasks := e.lister.ListWaitingTasks("")

	// Завершённые задачи выходят из-под учёта
	waiting := make(map[uuid.UUID]bool, len(tasks))
	for _, t := range tasks {
		waiting[t.TaskID] = true
	}
	for id := range e.seen {
		if !waiting[id] {
			delete(e.seen, id)
		}
	}

	var found int
	for _, t := range tasks {
		if !t.IsOverdue(now) || e.seen[t.TaskID] {
			continue
		}
		e.seen[t.TaskID] = true
		found++

		telemetry.OverdueTasks.Inc()
		e.logger.Warn("human task overdue",
			"task_id", t.TaskID,
			"execution_id", t.ExecutionID,
			"node_id", t.NodeID,
			"assignee", t.Assignee,
			"priority", t.Priority.String(),
			"due_date", t.DueDate)
	}
	return found
}
