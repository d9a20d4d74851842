// Package timer предоставляет источник отложенных срабатываний
// для TIMER-узлов: одноразовый отменяемый callback через заданную
// длительность.
package timer
