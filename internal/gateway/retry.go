package gateway

import (
	"context"
	"errors"
	"time"
)

// Стратегии backoff.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// RetryPolicy — политика повторных попыток вызова шлюза.
//
// Повторяются только ошибки шлюза (класс ErrGateway) — это
// единственный класс, где retry осмыслен. Нулевая политика означает
// fail-fast: одна попытка, без задержек.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток, включая первую.
	// Значения <= 1 отключают retry.
	MaxAttempts int

	// Backoff — стратегия задержки: "fixed" или "exponential".
	Backoff string

	// InitialDelay — задержка перед второй попыткой.
	InitialDelay time.Duration

	// MaxDelay — верхняя граница задержки.
	MaxDelay time.Duration
}

// Delay возвращает задержку перед попыткой attempt (нумерация с 1;
// перед первой попыткой задержки нет).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := p.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}

	if p.Backoff == BackoffExponential {
		for i := 2; i < attempt; i++ {
			delay *= 2
		}
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Invoke вызывает шлюз с применением политики повторных попыток.
// Повторяются только ошибки класса ErrGateway: прочие ошибки
// (авторские, программные) возвращаются сразу, без повторов.
// Отмена контекста прерывает и ожидание между попытками, и сам вызов.
func Invoke(ctx context.Context, gw Gateway, policy RetryPolicy, service, operation string, payload map[string]any) (map[string]any, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if delay := policy.Delay(attempt); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := gw.Invoke(ctx, service, operation, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !errors.Is(err, ErrGateway) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}
