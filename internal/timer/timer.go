package timer

import "time"

// Source — источник отложенных срабатываний.
//
// After планирует вызов fn через d и возвращает функцию отмены.
// Отмена после срабатывания — no-op.
type Source interface {
	After(d time.Duration, fn func()) (cancel func())
}

// Clock — Source на базе time.AfterFunc.
type Clock struct{}

// After реализует Source.
func (Clock) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
