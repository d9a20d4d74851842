// Package inbox — Task Inbox: внешняя доставка human tasks.
//
// HUMAN_TASK-узел публикует дескриптор задачи в Inbox; внешняя
// сторона (портал задач, бот) завершает её, и событие завершения
// возвращается в движок через CompletionConsumer.
//
// Реализации Inbox:
//   - MemoryInbox — in-process, для тестов и embedded-режима
//   - AMQPInbox — поверх RabbitMQ (connection.go, topology.go,
//     publisher.go) с автоматическим reconnect
//
// Escalator периодически обходит ожидающие задачи и фиксирует
// просроченные.
package inbox
