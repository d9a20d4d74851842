package engine

import (
	"fmt"

	"github.com/shaiso/Maestro/internal/domain"
)

// validVariableTypes — допустимые типы объявлений переменных.
var validVariableTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"object":  true,
	"array":   true,
}

// Validate выполняет полную структурную валидацию определения.
//
// Проверяет:
//   - ровно один START, хотя бы один END
//   - связность: у не-START узлов есть входящие рёбра,
//     у не-END узлов — исходящие
//   - рёбра ссылаются на существующие узлы
//   - fan-out только через PARALLEL_FORK (и маршруты DECISION):
//     у прочих узлов не больше одного исходящего ребра
//   - корректность типов узлов и их специфичных полей
//   - отсутствие циклов (алгоритм Кана)
//   - корректность объявлений переменных
//
// Не останавливается на первом нарушении: возвращает по одному
// диагностическому сообщению на каждый нарушенный инвариант.
// Пустой результат означает валидное определение.
func Validate(def *domain.WorkflowDefinition) []string {
	if def == nil || len(def.Nodes) == 0 {
		return []string{"workflow has no nodes"}
	}

	var violations []string

	// Узлы START/END
	startCount, endCount := 0, 0
	for _, node := range def.Nodes {
		switch node.Kind {
		case domain.NodeKindStart:
			startCount++
		case domain.NodeKindEnd:
			endCount++
		}
	}
	switch {
	case startCount == 0:
		violations = append(violations, "missing START node")
	case startCount > 1:
		violations = append(violations, "multiple START nodes")
	}
	if endCount == 0 {
		violations = append(violations, "missing END node")
	}

	// Поузловые проверки
	for _, node := range def.Nodes {
		violations = append(violations, validateNode(def, node)...)
	}

	// Циклы
	if hasCycle(def) {
		violations = append(violations, "cycle detected in workflow graph")
	}

	// Объявления переменных
	for name, decl := range def.Variables {
		if !validVariableTypes[decl.Type] {
			violations = append(violations, fmt.Sprintf("variable %q has unknown type %q", name, decl.Type))
		}
	}

	return violations
}

// validateNode проверяет один узел.
func validateNode(def *domain.WorkflowDefinition, node *domain.Node) []string {
	var violations []string

	if !node.Kind.IsValid() {
		violations = append(violations, fmt.Sprintf("node %q has unknown kind %q", node.ID, node.Kind))
		return violations
	}

	// Связность
	if node.Kind != domain.NodeKindStart && len(node.Incoming) == 0 {
		violations = append(violations, fmt.Sprintf("node %q has no incoming edges", node.ID))
	}
	if node.Kind != domain.NodeKindEnd && len(node.Outgoing) == 0 {
		violations = append(violations, fmt.Sprintf("node %q has no outgoing edges", node.ID))
	}
	if node.Kind == domain.NodeKindStart && len(node.Incoming) > 0 {
		violations = append(violations, fmt.Sprintf("START node %q must not have incoming edges", node.ID))
	}
	if node.Kind == domain.NodeKindEnd && len(node.Outgoing) > 0 {
		violations = append(violations, fmt.Sprintf("END node %q must not have outgoing edges", node.ID))
	}

	// Fan-out — только через PARALLEL_FORK, ветвление — через DECISION.
	// У остальных узлов несколько исходящих рёбер означали бы молчаливую
	// потерю всех, кроме первого.
	switch node.Kind {
	case domain.NodeKindDecision, domain.NodeKindFork:
	default:
		if len(node.Outgoing) > 1 {
			violations = append(violations, fmt.Sprintf(
				"node %q has %d outgoing edges (fan-out requires a PARALLEL_FORK node)",
				node.ID, len(node.Outgoing)))
		}
	}

	// Ссылки рёбер
	for _, e := range node.Outgoing {
		if def.Node(e.To) == nil {
			violations = append(violations, fmt.Sprintf("node %q has edge to unknown node %q", node.ID, e.To))
		}
	}
	for _, e := range node.Incoming {
		if def.Node(e.From) == nil {
			violations = append(violations, fmt.Sprintf("node %q has edge from unknown node %q", node.ID, e.From))
		}
	}

	// Специфика вида
	switch node.Kind {
	case domain.NodeKindServiceTask:
		if node.ServiceName == "" {
			violations = append(violations, fmt.Sprintf("service task %q has empty service name", node.ID))
		}
		if node.Operation == "" {
			violations = append(violations, fmt.Sprintf("service task %q has empty operation", node.ID))
		}

	case domain.NodeKindTimer:
		if node.Duration <= 0 {
			violations = append(violations, fmt.Sprintf("timer %q has non-positive duration", node.ID))
		}

	case domain.NodeKindDecision:
		// Условия проверяются на разбираемость заранее: авторская
		// ошибка в грамматике должна всплыть при регистрации,
		// а не посреди execution.
		for _, e := range node.Outgoing {
			if e.Condition != "" && isParseOnlyError(e.Condition) {
				violations = append(violations, fmt.Sprintf("decision %q has malformed condition %q", node.ID, e.Condition))
			}
		}
	}

	return violations
}

// isParseOnlyError возвращает true, если условие не разбирается
// грамматикой (в отличие от ошибок вычисления вроде необъявленной
// переменной, которые зависят от данных execution).
func isParseOnlyError(condition string) bool {
	tokens, err := lex(condition)
	if err != nil {
		return true
	}
	p := &exprParser{expr: condition, tokens: tokens}
	if _, err := p.parseOr(); err != nil {
		return true
	}
	return p.peek().kind != tokEOF
}

// hasCycle проверяет граф на циклы топологической сортировкой
// (алгоритм Кана): если обработаны не все узлы — есть цикл.
func hasCycle(def *domain.WorkflowDefinition) bool {
	inDegree := make(map[string]int, len(def.Nodes))
	for id := range def.Nodes {
		inDegree[id] = 0
	}
	for _, node := range def.Nodes {
		for _, e := range node.Outgoing {
			if _, ok := inDegree[e.To]; ok {
				inDegree[e.To]++
			}
		}
	}

	queue := make([]string, 0, len(def.Nodes))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++

		for _, e := range def.Nodes[id].Outgoing {
			if _, ok := inDegree[e.To]; !ok {
				continue
			}
			inDegree[e.To]--
			if inDegree[e.To] == 0 {
				queue = append(queue, e.To)
			}
		}
	}

	return processed != len(def.Nodes)
}
