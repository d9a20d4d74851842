package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPGateway — шлюз, вызывающий сервисы по HTTP.
//
// Имя сервиса отображается в базовый URL, операция — в путь:
// POST {baseURL}/{operation} с JSON payload в теле.
// JSON-объект из тела ответа становится результатом вызова.
type HTTPGateway struct {
	services map[string]string
	client   *http.Client
}

// NewHTTPGateway создаёт HTTPGateway с картой сервис → базовый URL.
func NewHTTPGateway(services map[string]string) *HTTPGateway {
	copied := make(map[string]string, len(services))
	for k, v := range services {
		copied[k] = v
	}
	return &HTTPGateway{
		services: copied,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Invoke выполняет HTTP-вызов операции сервиса.
func (g *HTTPGateway) Invoke(ctx context.Context, service, operation string, payload map[string]any) (map[string]any, error) {
	baseURL, ok := g.services[service]
	if !ok {
		return nil, &GatewayError{
			Service:   service,
			Operation: operation,
			Err:       fmt.Errorf("%w: no base URL configured", ErrUnknownService),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &GatewayError{Service: service, Operation: operation, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	url := baseURL + "/" + operation
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &GatewayError{Service: service, Operation: operation, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &GatewayError{Service: service, Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{Service: service, Operation: operation, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return nil, &GatewayError{
			Service:   service,
			Operation: operation,
			Err:       fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
		}
	}

	// Пустое тело — валидный результат без данных
	if len(respBody) == 0 {
		return map[string]any{}, nil
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &GatewayError{Service: service, Operation: operation, Err: fmt.Errorf("decode response: %w", err)}
	}
	return result, nil
}

// truncate обрезает строку до max символов.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
