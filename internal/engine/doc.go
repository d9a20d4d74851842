// Package engine строит и проверяет определения workflow.
//
// Включает:
//   - builder.go — fluent-конструктор графа workflow
//   - validate.go — структурная валидация (перечисляет ВСЕ нарушения)
//   - expr.go — вычислитель условий ветвления на закрытой грамматике
//
// Вычислитель условий сознательно не исполняет произвольный код:
// грамматика ограничена сравнениями и логическими связками, любой
// выход за неё — структурная ошибка, а не тихое false.
package engine
