package gateway

import (
	"context"
	"fmt"
	"sync"
)

// Gateway — шлюз интеграций.
//
// Единственный потребитель — SERVICE_TASK-узлы движка: payload
// собирается из переменных execution по input mapping, результат
// вливается обратно по output mapping.
type Gateway interface {
	Invoke(ctx context.Context, service, operation string, payload map[string]any) (map[string]any, error)
}

// Handler — in-process обработчик операции сервиса.
type Handler func(ctx context.Context, payload map[string]any) (map[string]any, error)

// LocalGateway — шлюз с реестром in-process обработчиков.
//
// Используется в тестах и для сервисов, живущих в том же процессе,
// что и движок.
type LocalGateway struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewLocalGateway создаёт пустой LocalGateway.
func NewLocalGateway() *LocalGateway {
	return &LocalGateway{handlers: make(map[string]Handler)}
}

// Register добавляет обработчик для пары (сервис, операция).
func (g *LocalGateway) Register(service, operation string, handler Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[service+"."+operation] = handler
}

// Invoke вызывает зарегистрированный обработчик.
func (g *LocalGateway) Invoke(ctx context.Context, service, operation string, payload map[string]any) (map[string]any, error) {
	g.mu.RLock()
	handler, ok := g.handlers[service+"."+operation]
	g.mu.RUnlock()

	if !ok {
		return nil, &GatewayError{
			Service:   service,
			Operation: operation,
			Err:       fmt.Errorf("%w: no handler registered", ErrUnknownService),
		}
	}

	result, err := handler(ctx, payload)
	if err != nil {
		return nil, &GatewayError{Service: service, Operation: operation, Err: err}
	}
	return result, nil
}
