package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка. Регистрируются в DefaultRegisterer при импорте пакета,
// экспортируются через promhttp в cmd.
var (
	// ExecutionsStarted — количество запущенных executions по workflow.
	ExecutionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maestro_executions_started_total",
		Help: "Number of workflow executions started.",
	}, []string{"workflow_id"})

	// ExecutionsFinished — количество завершённых executions по статусу.
	ExecutionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maestro_executions_finished_total",
		Help: "Number of workflow executions finished, by terminal status.",
	}, []string{"workflow_id", "status"})

	// NodeExecutions — количество посещений узлов по типу и статусу.
	NodeExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maestro_node_executions_total",
		Help: "Number of node executions, by node kind and outcome.",
	}, []string{"kind", "status"})

	// NodeDuration — длительность выполнения узлов по типу.
	NodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maestro_node_duration_seconds",
		Help:    "Node execution duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// WaitingTasks — текущее количество human tasks, ожидающих ответа.
	WaitingTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maestro_waiting_tasks",
		Help: "Number of human tasks currently waiting for completion.",
	})

	// GatewayCalls — вызовы шлюза интеграций по сервису и результату.
	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maestro_gateway_calls_total",
		Help: "Number of integration gateway calls, by service and result.",
	}, []string{"service", "result"})

	// OverdueTasks — количество просроченных задач, найденных Escalator.
	OverdueTasks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maestro_overdue_tasks_total",
		Help: "Number of overdue human tasks detected by the escalator.",
	})
)
