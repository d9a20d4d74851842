package orchestrator

import "errors"

// Ошибки контрольной поверхности и выполнения.
var (
	// ErrUnknownWorkflow — определение с таким ID не зарегистрировано.
	ErrUnknownWorkflow = errors.New("unknown workflow")

	// ErrUnknownExecution — execution с таким ID не найден.
	ErrUnknownExecution = errors.New("unknown execution")

	// ErrUnknownTask — на узле нет приостановленного токена.
	ErrUnknownTask = errors.New("unknown task")

	// ErrNoViableRoute — ни одно условие DECISION не выполнено
	// и маршрут по умолчанию отсутствует.
	ErrNoViableRoute = errors.New("no viable route")

	// ErrDuplicateJoinArrival — повторное прибытие токена на join
	// с того же входящего ребра.
	ErrDuplicateJoinArrival = errors.New("duplicate join arrival")

	// ErrTimerCancelled — таймер отменён до срабатывания.
	ErrTimerCancelled = errors.New("timer cancelled")

	// ErrExecutionFinished — операция над завершённым execution.
	ErrExecutionFinished = errors.New("execution finished")

	// ErrMissingVariable — обязательная переменная не передана
	// при старте либо отсутствует при построении payload.
	ErrMissingVariable = errors.New("missing variable")
)
