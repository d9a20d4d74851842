// Package gateway определяет шлюз интеграций — внешнего коллаборатора,
// через которого SERVICE_TASK-узлы выполняют реальную работу.
//
// Движок видит шлюз как непрозрачный, возможно медленный и возможно
// падающий удалённый вызов. Включает:
//   - gateway.go — интерфейс Gateway и in-process LocalGateway
//   - http.go — HTTPGateway поверх net/http (сервис → базовый URL)
//   - retry.go — политика повторных попыток с backoff
package gateway
