package inbox

import "errors"

// Ошибки Task Inbox.
var (
	// ErrTaskNotFound — задача с таким ID не находится в inbox.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoChannel — AMQP канал недоступен (соединение разорвано).
	ErrNoChannel = errors.New("no channel available")
)
