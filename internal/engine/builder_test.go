package engine

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Maestro/internal/domain"
)

func TestBuilder_LinearChain(t *testing.T) {
	def, err := NewBuilder("onboarding", "Onboarding").
		Start("start").
		ServiceTask("create_account", "Создание аккаунта", "accounts", "create").
		End("end").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(def.Nodes) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(def.Nodes))
	}

	// Неявная цепочка: start → create_account → end
	start := def.Node("start")
	if len(start.Outgoing) != 1 || start.Outgoing[0].To != "create_account" {
		t.Errorf("start should connect to create_account, got %+v", start.Outgoing)
	}
	task := def.Node("create_account")
	if len(task.Outgoing) != 1 || task.Outgoing[0].To != "end" {
		t.Errorf("create_account should connect to end, got %+v", task.Outgoing)
	}
	end := def.Node("end")
	if len(end.Incoming) != 1 || end.Incoming[0].From != "create_account" {
		t.Errorf("end should receive from create_account, got %+v", end.Incoming)
	}
}

func TestBuilder_ExplicitEdgesOverrideChain(t *testing.T) {
	// Decision с явными маршрутами: неявное ребро цепочки
	// decision → manual_review должно быть отброшено
	def, err := NewBuilder("credit", "Credit").
		Start("start").
		Decision("decision", "Решение").
		HumanTask("manual_review", "Ручная проверка", "manager").
		End("end").
		ConnectWhen("decision", "manual_review", "{score} < 700").
		ConnectWhen("decision", "end", "{score} >= 700").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decision := def.Node("decision")
	if len(decision.Outgoing) != 2 {
		t.Fatalf("expected 2 outgoing edges, got %d: %+v", len(decision.Outgoing), decision.Outgoing)
	}
	for _, e := range decision.Outgoing {
		if e.Condition == "" {
			t.Errorf("implicit chain edge survived: %+v", e)
		}
	}

	// Порядок условных рёбер = порядок ConnectWhen
	edges := decision.ConditionalEdges()
	if edges[0].To != "manual_review" || edges[1].To != "end" {
		t.Errorf("conditional edge order broken: %+v", edges)
	}
}

func TestBuilder_DecisionDefaultEdge(t *testing.T) {
	def, err := NewBuilder("wf", "WF").
		Start("start").
		Decision("decision", "Решение").
		HumanTask("review", "Проверка", "ops").
		End("end").
		Connect("decision", "end").
		ConnectWhen("decision", "review", "{score} < 700").
		Connect("review", "end").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decision := def.Node("decision")
	de := decision.DefaultEdge()
	if de == nil || de.To != "end" {
		t.Fatalf("expected default edge to end, got %+v", de)
	}
}

func TestBuilder_ForkJoin(t *testing.T) {
	def, err := NewBuilder("parallel", "Parallel").
		Start("start").
		Fork("fork", "Fan-out").
		ServiceTask("branch_a", "Ветка A", "svc", "op_a").
		ServiceTask("branch_b", "Ветка B", "svc", "op_b").
		Join("join", "Fan-in").
		End("end").
		Connect("fork", "branch_a").
		Connect("fork", "branch_b").
		Connect("branch_a", "join").
		Connect("branch_b", "join").
		Connect("join", "end").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	join := def.Node("join")
	if join.ExpectedArrivals() != 2 {
		t.Errorf("expected 2 arrivals, got %d", join.ExpectedArrivals())
	}
	fork := def.Node("fork")
	if len(fork.Outgoing) != 2 {
		t.Errorf("expected 2 fork branches, got %d", len(fork.Outgoing))
	}
}

func TestBuilder_FanOutWithoutForkRejected(t *testing.T) {
	// start → svc1 → {end_a, end_b} без PARALLEL_FORK: раньше такое
	// определение проходило валидацию, но токен уходил только по
	// первому ребру, и end_b никогда не посещался
	_, err := NewBuilder("wf", "WF").
		Start("start").
		ServiceTask("svc1", "Задача", "svc", "op").
		End("end_a").
		End("end_b").
		Connect("svc1", "end_a").
		Connect("svc1", "end_b").
		Build()
	if err == nil {
		t.Fatal("expected error for fan-out without PARALLEL_FORK")
	}

	var invalid *InvalidWorkflowError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidWorkflowError, got %T", err)
	}
	found := false
	for _, v := range invalid.Violations {
		if strings.Contains(v, "fan-out requires a PARALLEL_FORK") {
			found = true
		}
	}
	if !found {
		t.Errorf("violations %v missing fan-out diagnostic", invalid.Violations)
	}
}

func TestBuilder_Modifiers(t *testing.T) {
	due := time.Now().Add(48 * time.Hour)
	def, err := NewBuilder("wf", "WF").
		WithVersion("2.1").
		WithDescription("описание").
		Variable("score", "number", true, nil).
		Variable("channel", "string", false, "web").
		Start("start").
		ServiceTask("scoring", "Скоринг", "credit", "score").
		WithInputMapping(map[string]string{"applicant_score": "score"}).
		WithOutputMapping(map[string]string{"decision": "verdict"}).
		HumanTask("approve", "Утверждение", "cfo").
		WithFormFields(domain.FormField{Name: "approved", Type: "boolean", Required: true}).
		WithDueDate(due).
		WithPriority(domain.PriorityCritical).
		End("end").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.Version != "2.1" {
		t.Errorf("version = %q", def.Version)
	}
	if def.Variables["score"].Type != "number" || !def.Variables["score"].Required {
		t.Errorf("score declaration broken: %+v", def.Variables["score"])
	}
	if def.Variables["channel"].Default != "web" {
		t.Errorf("channel default broken: %+v", def.Variables["channel"])
	}

	scoring := def.Node("scoring")
	if scoring.InputMapping["applicant_score"] != "score" {
		t.Errorf("input mapping broken: %+v", scoring.InputMapping)
	}
	if scoring.OutputMapping["decision"] != "verdict" {
		t.Errorf("output mapping broken: %+v", scoring.OutputMapping)
	}

	approve := def.Node("approve")
	if approve.Priority != domain.PriorityCritical {
		t.Errorf("priority = %v", approve.Priority)
	}
	if approve.DueDate == nil || !approve.DueDate.Equal(due) {
		t.Errorf("due date broken: %v", approve.DueDate)
	}
	if len(approve.FormFields) != 1 || approve.FormFields[0].Name != "approved" {
		t.Errorf("form fields broken: %+v", approve.FormFields)
	}
}

func TestBuilder_EnumeratesAllViolations(t *testing.T) {
	// END отсутствует, service task без операции, таймер без длительности
	_, err := NewBuilder("broken", "Broken").
		Start("start").
		ServiceTask("task", "Задача", "svc", "").
		Timer("wait", "Ожидание", 0).
		Build()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrInvalidWorkflow) {
		t.Fatalf("expected ErrInvalidWorkflow, got %v", err)
	}

	var invalid *InvalidWorkflowError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidWorkflowError, got %T", err)
	}

	wantSubstrings := []string{
		"missing END node",
		"empty operation",
		"non-positive duration",
		"no outgoing edges", // у таймера нет преемника
	}
	for _, want := range wantSubstrings {
		found := false
		for _, v := range invalid.Violations {
			if strings.Contains(v, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("violations %v missing %q", invalid.Violations, want)
		}
	}
}

func TestBuilder_DuplicateNodeID(t *testing.T) {
	_, err := NewBuilder("wf", "WF").
		Start("start").
		ServiceTask("task", "A", "svc", "op").
		ServiceTask("task", "B", "svc", "op").
		End("end").
		Build()
	if err == nil {
		t.Fatal("expected error for duplicate node ID")
	}

	var invalid *InvalidWorkflowError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidWorkflowError, got %T", err)
	}
	found := false
	for _, v := range invalid.Violations {
		if strings.Contains(v, "duplicate node ID") {
			found = true
		}
	}
	if !found {
		t.Errorf("violations %v missing duplicate diagnostic", invalid.Violations)
	}
}

func TestBuilder_ConnectionToUnknownNode(t *testing.T) {
	_, err := NewBuilder("wf", "WF").
		Start("start").
		End("end").
		Connect("start", "ghost").
		Build()
	if err == nil {
		t.Fatal("expected error for unknown connection target")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error should name the unknown node: %v", err)
	}
}

func TestBuilder_MalformedDecisionCondition(t *testing.T) {
	_, err := NewBuilder("wf", "WF").
		Start("start").
		Decision("decision", "Решение").
		End("end").
		ConnectWhen("decision", "end", "score << 700").
		Build()
	if err == nil {
		t.Fatal("expected error for malformed condition")
	}
	if !strings.Contains(err.Error(), "malformed condition") {
		t.Errorf("expected malformed condition diagnostic, got: %v", err)
	}
}
