package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Maestro/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTaskWaiting   MessageType = "task.waiting"
	MessageTypeTaskWithdrawn MessageType = "task.withdrawn"
	MessageTypeTaskCompleted MessageType = "task.completed"
)

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// TaskWithdrawnPayload — payload отзыва задачи
// (завершена через движок либо execution отменён/провален).
type TaskWithdrawnPayload struct {
	TaskID uuid.UUID `json:"task_id"`
}

// TaskCompletedPayload — payload события завершения задачи,
// публикуемого внешней стороной в tasks.completed.
type TaskCompletedPayload struct {
	ExecutionID uuid.UUID      `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	Answers     map[string]any `json:"answers,omitempty"`
	CompletedBy string         `json:"completed_by,omitempty"`
}

// AMQPInbox — Inbox поверх RabbitMQ.
//
// Дескрипторы задач публикуются в обменник maestro.tasks; ими
// питается внешний портал задач. Отзыв — отдельное событие с тем же
// task_id: потребитель обязан снять задачу с показа.
type AMQPInbox struct {
	conn   *Connection
	logger *slog.Logger
}

// NewAMQPInbox создаёт AMQPInbox.
func NewAMQPInbox(conn *Connection, logger *slog.Logger) *AMQPInbox {
	return &AMQPInbox{conn: conn, logger: logger}
}

// Publish реализует Inbox: публикует дескриптор задачи.
func (p *AMQPInbox) Publish(ctx context.Context, task *domain.HumanTask) error {
	return p.publish(ctx, RoutingKeyWaiting, &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskWaiting,
		Payload:   task,
		Timestamp: time.Now(),
	})
}

// Withdraw реализует Inbox: публикует отзыв задачи.
func (p *AMQPInbox) Withdraw(ctx context.Context, taskID uuid.UUID) error {
	return p.publish(ctx, RoutingKeyWithdrawn, &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskWithdrawn,
		Payload:   TaskWithdrawnPayload{TaskID: taskID},
		Timestamp: time.Now(),
	})
}

// publish публикует сообщение в обменник задач.
func (p *AMQPInbox) publish(ctx context.Context, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(ExchangeTasks), // exchange
			string(routingKey),    // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", ExchangeTasks, routingKey, err)
		}

		p.logger.Debug("published message",
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}
