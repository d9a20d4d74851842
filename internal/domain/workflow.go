package domain

import "time"

// NodeKind — тип узла в графе workflow.
type NodeKind string

// Типы узлов.
const (
	NodeKindStart       NodeKind = "START"
	NodeKindEnd         NodeKind = "END"
	NodeKindServiceTask NodeKind = "SERVICE_TASK"
	NodeKindDecision    NodeKind = "DECISION"
	NodeKindHumanTask   NodeKind = "HUMAN_TASK"
	NodeKindTimer       NodeKind = "TIMER"
	NodeKindFork        NodeKind = "PARALLEL_FORK"
	NodeKindJoin        NodeKind = "PARALLEL_JOIN"
)

// validNodeKinds — допустимые типы узлов.
var validNodeKinds = map[NodeKind]bool{
	NodeKindStart:       true,
	NodeKindEnd:         true,
	NodeKindServiceTask: true,
	NodeKindDecision:    true,
	NodeKindHumanTask:   true,
	NodeKindTimer:       true,
	NodeKindFork:        true,
	NodeKindJoin:        true,
}

// IsValid возвращает true для известного типа узла.
func (k NodeKind) IsValid() bool {
	return validNodeKinds[k]
}

// Edge — направленное ребро между узлами.
//
// В Outgoing узла заполняется To, в Incoming — From.
// Condition — выражение ветвления (только для рёбер из DECISION);
// пустая Condition у исходящего ребра DECISION означает маршрут по умолчанию.
type Edge struct {
	// From — ID узла-источника (для входящих рёбер).
	From string `json:"from,omitempty"`

	// To — ID узла-приёмника (для исходящих рёбер).
	To string `json:"to,omitempty"`

	// Condition — условие перехода, например "{score} >= 700".
	Condition string `json:"condition,omitempty"`
}

// FormField — поле формы human task.
type FormField struct {
	// Name — имя поля (ключ в answers при завершении задачи).
	Name string `json:"name"`

	// Label — подпись поля для отображения.
	Label string `json:"label,omitempty"`

	// Type — тип значения: "string", "number", "boolean".
	Type string `json:"type,omitempty"`

	// Required — обязательное ли поле.
	Required bool `json:"required,omitempty"`
}

// VariableDecl — объявление переменной workflow.
type VariableDecl struct {
	// Type — тип переменной: "string", "number", "boolean", "object", "array".
	Type string `json:"type"`

	// Required — обязательная ли переменная при старте execution.
	Required bool `json:"required,omitempty"`

	// Default — значение по умолчанию (подставляется, если не передано).
	Default any `json:"default,omitempty"`

	// Description — описание назначения переменной.
	Description string `json:"description,omitempty"`
}

// Node — узел графа workflow.
//
// Один тип на все виды узлов: Kind определяет семантику, специфичные
// для вида поля заполняются только для соответствующего Kind. Такая
// плоская форма тривиально сериализуется в JSONB.
type Node struct {
	// ID — уникальный идентификатор узла в рамках workflow.
	ID string `json:"id"`

	// Name — человекочитаемое имя узла.
	Name string `json:"name,omitempty"`

	// Kind — тип узла.
	Kind NodeKind `json:"kind"`

	// Incoming — входящие рёбра.
	Incoming []Edge `json:"incoming,omitempty"`

	// Outgoing — исходящие рёбра в порядке объявления.
	// Для DECISION порядок определяет очерёдность проверки условий.
	Outgoing []Edge `json:"outgoing,omitempty"`

	// ServiceName — имя внешнего сервиса (SERVICE_TASK).
	ServiceName string `json:"service_name,omitempty"`

	// Operation — операция сервиса (SERVICE_TASK).
	Operation string `json:"operation,omitempty"`

	// InputMapping — ключ payload → имя переменной (SERVICE_TASK).
	InputMapping map[string]string `json:"input_mapping,omitempty"`

	// OutputMapping — ключ результата → имя переменной (SERVICE_TASK).
	OutputMapping map[string]string `json:"output_mapping,omitempty"`

	// Assignee — исполнитель задачи (HUMAN_TASK).
	Assignee string `json:"assignee,omitempty"`

	// FormFields — поля формы (HUMAN_TASK).
	FormFields []FormField `json:"form_fields,omitempty"`

	// DueDate — срок выполнения (HUMAN_TASK).
	DueDate *time.Time `json:"due_date,omitempty"`

	// Priority — приоритет задачи (HUMAN_TASK).
	Priority TaskPriority `json:"priority,omitempty"`

	// Duration — длительность ожидания (TIMER).
	Duration time.Duration `json:"duration,omitempty"`
}

// ExpectedArrivals возвращает количество токенов, которое должен
// накопить PARALLEL_JOIN перед выпуском токена-преемника.
// Равно количеству входящих рёбер.
func (n *Node) ExpectedArrivals() int {
	return len(n.Incoming)
}

// DefaultEdge возвращает маршрут по умолчанию DECISION-узла
// (исходящее ребро без условия) или nil, если его нет.
func (n *Node) DefaultEdge() *Edge {
	for i := range n.Outgoing {
		if n.Outgoing[i].Condition == "" {
			return &n.Outgoing[i]
		}
	}
	return nil
}

// ConditionalEdges возвращает условные исходящие рёбра DECISION-узла
// в порядке объявления.
func (n *Node) ConditionalEdges() []Edge {
	edges := make([]Edge, 0, len(n.Outgoing))
	for _, e := range n.Outgoing {
		if e.Condition != "" {
			edges = append(edges, e)
		}
	}
	return edges
}

// WorkflowDefinition — определение workflow.
//
// Definition — это неизменяемый "шаблон" процесса: граф узлов, рёбра
// и объявления переменных. После регистрации в Engine определение
// не мутируется; изменения оформляются как новая версия (новая
// регистрация с тем же ID заменяет определение только для новых
// executions — запущенные продолжают работать со своим снимком).
type WorkflowDefinition struct {
	// ID — уникальный идентификатор workflow.
	ID string `json:"id"`

	// Name — человекочитаемое имя workflow.
	Name string `json:"name"`

	// Version — версия определения.
	Version string `json:"version"`

	// Description — описание назначения процесса.
	Description string `json:"description,omitempty"`

	// Nodes — все узлы графа (nodeID → Node).
	Nodes map[string]*Node `json:"nodes"`

	// Variables — объявления переменных (имя → объявление).
	Variables map[string]VariableDecl `json:"variables,omitempty"`

	// CreatedAt — время создания определения.
	CreatedAt time.Time `json:"created_at"`
}

// Node возвращает узел по ID или nil.
func (d *WorkflowDefinition) Node(id string) *Node {
	return d.Nodes[id]
}

// StartNode возвращает единственный START-узел.
// Для валидного определения всегда не nil.
func (d *WorkflowDefinition) StartNode() *Node {
	for _, n := range d.Nodes {
		if n.Kind == NodeKindStart {
			return n
		}
	}
	return nil
}

// NodesOfKind возвращает все узлы заданного типа.
func (d *WorkflowDefinition) NodesOfKind(kind NodeKind) []*Node {
	nodes := make([]*Node, 0)
	for _, n := range d.Nodes {
		if n.Kind == kind {
			nodes = append(nodes, n)
		}
	}
	return nodes
}
