package engine

import (
	"fmt"
	"time"

	"github.com/shaiso/Maestro/internal/domain"
)

// Builder — fluent-конструктор определения workflow.
//
// Каждый вызов, добавляющий узел, неявно соединяет его с предыдущим
// добавленным узлом; для нелинейных топологий (ветвления DECISION,
// ветки PARALLEL_FORK) используются явные Connect / ConnectWhen.
//
// Пример:
//
//	def, err := engine.NewBuilder("credit_approval", "Аппрув кредита").
//		Start("start").
//		ServiceTask("validate", "Проверка документов", "documents", "validate").
//		Decision("credit_decision", "Решение по кредиту").
//		HumanTask("manual_review", "Ручная проверка", "manager@example.com").
//		End("end").
//		ConnectWhen("credit_decision", "manual_review", "{score} < 700").
//		ConnectWhen("credit_decision", "end", "{score} >= 700").
//		Build()
//
// Рёбра материализуются в Build(), поэтому порядок Connect-вызовов
// относительно добавления узлов не важен. Build() запускает полную
// структурную валидацию и возвращает InvalidWorkflowError со списком
// ВСЕХ нарушений.
type Builder struct {
	def         *domain.WorkflowDefinition
	last        string
	connections []connection
	violations  []string
}

// connection — отложенное ребро (материализуется в Build).
// Неявное ребро цепочки уступает явным: если у узла есть исходящие
// Connect/ConnectWhen, его неявное ребро отбрасывается.
type connection struct {
	from      string
	to        string
	condition string
	implicit  bool
}

// NewBuilder создаёт Builder для workflow с заданными ID и именем.
func NewBuilder(id, name string) *Builder {
	return &Builder{
		def: &domain.WorkflowDefinition{
			ID:        id,
			Name:      name,
			Version:   "1.0",
			Nodes:     make(map[string]*domain.Node),
			Variables: make(map[string]domain.VariableDecl),
			CreatedAt: time.Now(),
		},
	}
}

// WithVersion устанавливает версию определения.
func (b *Builder) WithVersion(version string) *Builder {
	b.def.Version = version
	return b
}

// WithDescription устанавливает описание процесса.
func (b *Builder) WithDescription(description string) *Builder {
	b.def.Description = description
	return b
}

// Variable объявляет переменную workflow.
func (b *Builder) Variable(name, varType string, required bool, defaultValue any) *Builder {
	b.def.Variables[name] = domain.VariableDecl{
		Type:     varType,
		Required: required,
		Default:  defaultValue,
	}
	return b
}

// Start добавляет START-узел. Цепочка неявных соединений начинается с него.
func (b *Builder) Start(nodeID string) *Builder {
	b.add(&domain.Node{ID: nodeID, Name: "Start", Kind: domain.NodeKindStart}, false)
	return b
}

// End добавляет END-узел и соединяет его с предыдущим узлом.
func (b *Builder) End(nodeID string) *Builder {
	node := &domain.Node{ID: nodeID, Name: "End", Kind: domain.NodeKindEnd}
	if b.addNode(node) && b.last != "" {
		b.connections = append(b.connections, connection{from: b.last, to: nodeID, implicit: true})
	}
	// END не становится "предыдущим" узлом: после него цепочка
	// продолжается от узла перед ним (как правило, построение закончено).
	return b
}

// ServiceTask добавляет SERVICE_TASK-узел.
func (b *Builder) ServiceTask(nodeID, name, service, operation string) *Builder {
	b.add(&domain.Node{
		ID:          nodeID,
		Name:        name,
		Kind:        domain.NodeKindServiceTask,
		ServiceName: service,
		Operation:   operation,
	}, true)
	return b
}

// HumanTask добавляет HUMAN_TASK-узел.
func (b *Builder) HumanTask(nodeID, name, assignee string) *Builder {
	b.add(&domain.Node{
		ID:       nodeID,
		Name:     name,
		Kind:     domain.NodeKindHumanTask,
		Assignee: assignee,
		Priority: domain.PriorityNormal,
	}, true)
	return b
}

// Decision добавляет DECISION-узел.
// Условные маршруты задаются через ConnectWhen, маршрут по умолчанию —
// через Connect (ребро без условия).
func (b *Builder) Decision(nodeID, name string) *Builder {
	b.add(&domain.Node{ID: nodeID, Name: name, Kind: domain.NodeKindDecision}, true)
	return b
}

// Timer добавляет TIMER-узел с длительностью ожидания.
func (b *Builder) Timer(nodeID, name string, duration time.Duration) *Builder {
	b.add(&domain.Node{
		ID:       nodeID,
		Name:     name,
		Kind:     domain.NodeKindTimer,
		Duration: duration,
	}, true)
	return b
}

// Fork добавляет PARALLEL_FORK-узел.
func (b *Builder) Fork(nodeID, name string) *Builder {
	b.add(&domain.Node{ID: nodeID, Name: name, Kind: domain.NodeKindFork}, true)
	return b
}

// Join добавляет PARALLEL_JOIN-узел.
func (b *Builder) Join(nodeID, name string) *Builder {
	b.add(&domain.Node{ID: nodeID, Name: name, Kind: domain.NodeKindJoin}, true)
	return b
}

// Connect добавляет безусловное ребро from → to.
func (b *Builder) Connect(from, to string) *Builder {
	b.connections = append(b.connections, connection{from: from, to: to})
	return b
}

// ConnectWhen добавляет условное ребро from → to.
// Порядок ConnectWhen-вызовов определяет очерёдность проверки условий.
func (b *Builder) ConnectWhen(from, to, condition string) *Builder {
	b.connections = append(b.connections, connection{from: from, to: to, condition: condition})
	return b
}

// WithInputMapping задаёт input mapping последнего добавленного узла
// (ключ payload → имя переменной).
func (b *Builder) WithInputMapping(mapping map[string]string) *Builder {
	if node := b.lastNode(); node != nil {
		node.InputMapping = mapping
	}
	return b
}

// WithOutputMapping задаёт output mapping последнего добавленного узла
// (ключ результата → имя переменной).
func (b *Builder) WithOutputMapping(mapping map[string]string) *Builder {
	if node := b.lastNode(); node != nil {
		node.OutputMapping = mapping
	}
	return b
}

// WithFormFields задаёт поля формы последнего добавленного узла.
func (b *Builder) WithFormFields(fields ...domain.FormField) *Builder {
	if node := b.lastNode(); node != nil {
		node.FormFields = fields
	}
	return b
}

// WithDueDate задаёт срок выполнения последнего добавленного узла.
func (b *Builder) WithDueDate(due time.Time) *Builder {
	if node := b.lastNode(); node != nil {
		node.DueDate = &due
	}
	return b
}

// WithPriority задаёт приоритет последнего добавленного узла.
func (b *Builder) WithPriority(priority domain.TaskPriority) *Builder {
	if node := b.lastNode(); node != nil {
		node.Priority = priority
	}
	return b
}

// Build материализует рёбра, валидирует определение и возвращает его.
// При любых нарушениях возвращает InvalidWorkflowError с полным списком.
func (b *Builder) Build() (*domain.WorkflowDefinition, error) {
	violations := make([]string, 0, len(b.violations))
	violations = append(violations, b.violations...)

	// Узлы с явными исходящими рёбрами: их неявные рёбра цепочки
	// отбрасываются (нелинейная топология задана явно).
	explicit := make(map[string]bool)
	for _, c := range b.connections {
		if !c.implicit {
			explicit[c.from] = true
		}
	}

	// Материализуем рёбра
	for _, c := range b.connections {
		if c.implicit && explicit[c.from] {
			continue
		}
		from, fromOK := b.def.Nodes[c.from]
		to, toOK := b.def.Nodes[c.to]
		if !fromOK {
			violations = append(violations, fmt.Sprintf("connection references unknown node %q", c.from))
		}
		if !toOK {
			violations = append(violations, fmt.Sprintf("connection references unknown node %q", c.to))
		}
		if !fromOK || !toOK {
			continue
		}
		from.Outgoing = append(from.Outgoing, domain.Edge{To: c.to, Condition: c.condition})
		to.Incoming = append(to.Incoming, domain.Edge{From: c.from, Condition: c.condition})
	}

	violations = append(violations, Validate(b.def)...)

	if len(violations) > 0 {
		return nil, &InvalidWorkflowError{WorkflowID: b.def.ID, Violations: violations}
	}
	return b.def, nil
}

// add добавляет узел и, если chain=true, соединяет его с предыдущим.
func (b *Builder) add(node *domain.Node, chain bool) {
	if b.addNode(node) {
		if chain && b.last != "" {
			b.connections = append(b.connections, connection{from: b.last, to: node.ID, implicit: true})
		}
		b.last = node.ID
	}
}

// addNode регистрирует узел, отслеживая дубликаты ID.
func (b *Builder) addNode(node *domain.Node) bool {
	if node.ID == "" {
		b.violations = append(b.violations, "node has empty ID")
		return false
	}
	if _, exists := b.def.Nodes[node.ID]; exists {
		b.violations = append(b.violations, fmt.Sprintf("duplicate node ID %q", node.ID))
		return false
	}
	b.def.Nodes[node.ID] = node
	return true
}

// lastNode возвращает последний добавленный узел.
func (b *Builder) lastNode() *domain.Node {
	if b.last == "" {
		return nil
	}
	return b.def.Nodes[b.last]
}
