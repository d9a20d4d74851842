package inbox

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeTasks Exchange = "maestro.tasks"
	ExchangeDLQ   Exchange = "maestro.dlq"
)

// Queues — имена очередей.
const (
	QueueTasksWaiting   Queue = "tasks.waiting"
	QueueTasksCompleted Queue = "tasks.completed"
	QueueDLQTasks       Queue = "dlq.tasks"
)

// Routing keys.
const (
	RoutingKeyWaiting   RoutingKey = "waiting"
	RoutingKeyWithdrawn RoutingKey = "withdrawn"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQTasks  RoutingKey = "tasks"
)

// SetupTopology объявляет топологию на текущем канале соединения.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, DeclareTopology)
}

// DeclareTopology объявляет обменники, очереди и привязки на заданном
// канале. Объявления идемпотентны, поэтому функция пригодна и как хук
// Connection.OnReconnect.
func DeclareTopology(ch *amqp.Channel) error {
	if err := declareExchanges(ch); err != nil {
		return err
	}
	if err := declareQueues(ch); err != nil {
		return err
	}
	return bindQueues(ch)
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeTasks, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTasks),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// tasks.waiting — задачи для внешнего портала; с DLQ
		{QueueTasksWaiting, dlqArgs},

		// tasks.completed — события завершения, обратно в движок; с DLQ
		{QueueTasksCompleted, dlqArgs},

		// dlq.tasks — сама DLQ очередь
		{QueueDLQTasks, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueTasksWaiting, RoutingKeyWaiting, ExchangeTasks},
		{QueueTasksWaiting, RoutingKeyWithdrawn, ExchangeTasks},
		{QueueTasksCompleted, RoutingKeyCompleted, ExchangeTasks},
		{QueueDLQTasks, RoutingKeyDLQTasks, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Maestro RabbitMQ Topology:

    maestro.tasks (direct)
    ├── tasks.waiting [routing: waiting, withdrawn]
    │       Consumer: Task portal / bots
    │       DLQ: dlq.tasks
    └── tasks.completed [routing: completed]
            Consumer: Engine (CompletionConsumer)
            DLQ: dlq.tasks

    maestro.dlq (direct)
    └── dlq.tasks [routing: tasks]
            Manual processing
  `
}
