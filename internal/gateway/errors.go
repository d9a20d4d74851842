package gateway

import (
	"errors"
	"fmt"
)

// Ошибки шлюза интеграций.
var (
	// ErrGateway — вызов сервиса завершился ошибкой (инфраструктурная ошибка).
	ErrGateway = errors.New("gateway call failed")

	// ErrUnknownService — для пары (сервис, операция) нет обработчика.
	ErrUnknownService = errors.New("unknown service")
)

// GatewayError — ошибка вызова внешнего сервиса с контекстом.
type GatewayError struct {
	// Service — имя сервиса.
	Service string

	// Operation — операция сервиса.
	Operation string

	// Err — причина ошибки.
	Err error
}

// Error реализует интерфейс error.
func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s.%s: %v", e.Service, e.Operation, e.Err)
}

// Unwrap возвращает базовые ошибки: класс ErrGateway и причину.
func (e *GatewayError) Unwrap() []error {
	return []error{ErrGateway, e.Err}
}
