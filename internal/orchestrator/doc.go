// Package orchestrator управляет выполнением workflow.
//
// Engine — центральный компонент: реестр определений и контрольная
// поверхность (RegisterWorkflow, StartWorkflow, CompleteTask,
// CancelExecution, GetExecutionStatus, ListWaitingTasks).
//
// Каждый запуск представлен execution — машиной состояний с явными
// токенами. Токен — одна параллельная нить управления по графу:
// PARALLEL_FORK порождает по токену на исходящее ребро,
// PARALLEL_JOIN накапливает прибытия с различных входящих рёбер и
// выпускает ровно один токен-преемник. Продвижение токена — отдельная
// горутина; точки приостановки (вызов шлюза, human task, таймер,
// join-барьер) не держат общий лок execution.
package orchestrator
