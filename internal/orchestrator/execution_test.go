package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/engine"
	"github.com/shaiso/Maestro/internal/repo"
)

func TestParallelForkJoin(t *testing.T) {
	e, lg, _, store := newTestEngine(t)

	// Обе ветки должны выполняться одновременно: каждый обработчик
	// ждёт второго. Последовательное выполнение здесь повисло бы.
	var rendezvous sync.WaitGroup
	rendezvous.Add(2)
	barrier := func(context.Context, map[string]any) (map[string]any, error) {
		rendezvous.Done()
		rendezvous.Wait()
		return map[string]any{}, nil
	}
	lg.Register("svc", "op_a", barrier)
	lg.Register("svc", "op_b", barrier)

	def, err := engine.NewBuilder("parallel", "Parallel").
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
	mustRegister(t, e, def, err)

	execID, err := e.StartWorkflow(context.Background(), "parallel", "u", "c", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	s := status(t, e, execID)
	if s.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED (error: %s)", s.Status, s.Error)
	}

	snap, err := store.Get(context.Background(), execID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	visits := make(map[string]int)
	for _, rec := range snap.Records {
		visits[rec.NodeID]++
	}

	// start, fork, обе ветки, два прибытия на join, один end
	want := map[string]int{"start": 1, "fork": 1, "branch_a": 1, "branch_b": 1, "join": 2, "end": 1}
	for node, n := range want {
		if visits[node] != n {
			t.Errorf("visits[%s] = %d, want %d", node, visits[node], n)
		}
	}

	// Барьер выпускает ровно один токен-преемник
	if visits["end"] != 1 {
		t.Errorf("join released %d successors, want exactly 1", visits["end"])
	}
}

func TestJoin_DuplicateArrival(t *testing.T) {
	e, lg, _, _ := newTestEngine(t)
	lg.Register("svc", "op", func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})

	// Обе ветки a и b сходятся в c, поэтому ребро c → join
	// доставляется дважды. Ветка h паркуется и до join не доходит.
	def, err := engine.NewBuilder("dup", "Dup").
		Start("start").
		Fork("fork", "Fan-out").
		ServiceTask("a", "A", "svc", "op").
		ServiceTask("b", "B", "svc", "op").
		ServiceTask("c", "C", "svc", "op").
		HumanTask("h", "H", "ops").
		Join("join", "Fan-in").
		End("end").
		Connect("fork", "a").
		Connect("fork", "b").
		Connect("fork", "h").
		Connect("a", "c").
		Connect("b", "c").
		Connect("c", "join").
		Connect("h", "join").
		Connect("join", "end").
		Build()
	mustRegister(t, e, def, err)

	execID, err := e.StartWorkflow(context.Background(), "dup", "u", "c", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	s := status(t, e, execID)
	if s.Status != domain.ExecutionStatusFailed {
		t.Fatalf("status = %s, want FAILED", s.Status)
	}
	if s.FailedNode != "join" {
		t.Errorf("failed node = %q, want join", s.FailedNode)
	}
	if !strings.Contains(s.Error, ErrDuplicateJoinArrival.Error()) {
		t.Errorf("error = %q, want duplicate join arrival", s.Error)
	}
	// Провал гасит припаркованную задачу
	if got := len(e.ListWaitingTasks("")); got != 0 {
		t.Errorf("waiting tasks after failure = %d, want 0", got)
	}
}

func TestJoin_StarvedByDecision(t *testing.T) {
	e, lg, _, _ := newTestEngine(t)
	lg.Register("svc", "op", func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})

	// Decision уводит свой токен мимо join: барьер ждёт прибытия,
	// которое уже не может случиться.
	def, err := engine.NewBuilder("starved", "Starved").
		Start("start").
		Fork("fork", "Fan-out").
		ServiceTask("a", "A", "svc", "op").
		Decision("route", "Маршрут").
		Join("join", "Fan-in").
		End("end").
		Connect("fork", "a").
		Connect("fork", "route").
		Connect("a", "join").
		ConnectWhen("route", "join", "{take} == true").
		Connect("route", "end").
		Connect("join", "end").
		Build()
	mustRegister(t, e, def, err)

	execID, err := e.StartWorkflow(context.Background(), "starved", "u", "c",
		map[string]any{"take": false})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	s := status(t, e, execID)
	if s.Status != domain.ExecutionStatusFailed {
		t.Fatalf("status = %s, want FAILED (error: %s)", s.Status, s.Error)
	}
	if s.FailedNode != "join" {
		t.Errorf("failed node = %q, want join", s.FailedNode)
	}
	if !strings.Contains(s.Error, "starved") {
		t.Errorf("error = %q, want starvation diagnostic", s.Error)
	}
}

func TestJoin_ReleasedByDecision(t *testing.T) {
	e, lg, _, _ := newTestEngine(t)
	lg.Register("svc", "op", func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})

	def, err := engine.NewBuilder("converge", "Converge").
		Start("start").
		Fork("fork", "Fan-out").
		ServiceTask("a", "A", "svc", "op").
		Decision("route", "Маршрут").
		Join("join", "Fan-in").
		End("end").
		Connect("fork", "a").
		Connect("fork", "route").
		Connect("a", "join").
		ConnectWhen("route", "join", "{take} == true").
		Connect("route", "end").
		Connect("join", "end").
		Build()
	mustRegister(t, e, def, err)

	execID, err := e.StartWorkflow(context.Background(), "converge", "u", "c",
		map[string]any{"take": true})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	s := status(t, e, execID)
	if s.Status != domain.ExecutionStatusCompleted {
		t.Errorf("status = %s, want COMPLETED (error: %s)", s.Status, s.Error)
	}
}

func TestTimer_FiresAndResumes(t *testing.T) {
	e, _, timers, _ := newTestEngine(t)

	def, err := engine.NewBuilder("delayed", "Delayed").
		Start("start").
		Timer("wait", "Ожидание", time.Minute).
		End("end").
		Build()
	mustRegister(t, e, def, err)

	execID, err := e.StartWorkflow(context.Background(), "delayed", "u", "c", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	s := status(t, e, execID)
	if s.Status != domain.ExecutionStatusWaiting {
		t.Fatalf("status = %s, want WAITING before timer fires", s.Status)
	}

	timers.fire()

	s = status(t, e, execID)
	if s.Status != domain.ExecutionStatusCompleted {
		t.Errorf("status = %s, want COMPLETED after timer fired", s.Status)
	}
}

func TestTimer_CancelledWithExecution(t *testing.T) {
	e, _, timers, _ := newTestEngine(t)

	def, err := engine.NewBuilder("delayed", "Delayed").
		Start("start").
		Timer("wait", "Ожидание", time.Hour).
		End("end").
		Build()
	mustRegister(t, e, def, err)

	execID, err := e.StartWorkflow(context.Background(), "delayed", "u", "c", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := e.CancelExecution(context.Background(), execID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := timers.cancelledCount(); got != 1 {
		t.Errorf("cancelled timers = %d, want 1", got)
	}

	// Позднее срабатывание погашенного таймера ничего не меняет
	timers.fire()

	s := status(t, e, execID)
	if s.Status != domain.ExecutionStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", s.Status)
	}
}

func TestConcurrentVariableWrite_IsAdvisory(t *testing.T) {
	e, lg, _, _ := newTestEngine(t)

	lg.Register("svc", "op_a", func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{"result": "a"}, nil
	})
	lg.Register("svc", "op_b", func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{"result": "b"}, nil
	})

	// Обе ветки пишут в одну переменную: последний победил,
	// execution завершается успешно.
	def, err := engine.NewBuilder("races", "Races").
		Start("start").
		Fork("fork", "Fan-out").
		ServiceTask("branch_a", "A", "svc", "op_a").
		WithOutputMapping(map[string]string{"result": "shared"}).
		ServiceTask("branch_b", "B", "svc", "op_b").
		WithOutputMapping(map[string]string{"result": "shared"}).
		Join("join", "Fan-in").
		End("end").
		Connect("fork", "branch_a").
		Connect("fork", "branch_b").
		Connect("branch_a", "join").
		Connect("branch_b", "join").
		Connect("join", "end").
		Build()
	mustRegister(t, e, def, err)

	execID, err := e.StartWorkflow(context.Background(), "races", "u", "c", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	s := status(t, e, execID)
	if s.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED (error: %s)", s.Status, s.Error)
	}
	if v := s.Variables["shared"]; v != "a" && v != "b" {
		t.Errorf("shared = %v, want one of the branch results", v)
	}
}

func TestExecutionSnapshot_Journaled(t *testing.T) {
	e, _, _, store := newTestEngine(t)

	def, err := engine.NewBuilder("journal", "Journal").
		Start("start").
		End("end").
		Build()
	mustRegister(t, e, def, err)

	execID, err := e.StartWorkflow(context.Background(), "journal", "user-7", "acme", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	snap, err := store.Get(context.Background(), execID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Status != domain.ExecutionStatusCompleted {
		t.Errorf("snapshot status = %s", snap.Status)
	}
	if snap.UserID != "user-7" || snap.CompanyID != "acme" {
		t.Errorf("snapshot identity broken: %s/%s", snap.UserID, snap.CompanyID)
	}
	if snap.CompletedAt == nil {
		t.Error("snapshot completed_at missing")
	}
	if len(snap.Records) != 2 {
		t.Errorf("snapshot records = %d, want 2", len(snap.Records))
	}
	if len(snap.Tokens) != 0 {
		t.Errorf("completed execution should have no live tokens: %+v", snap.Tokens)
	}
}

// Проверяет, что вытесненный из памяти execution поднимается из журнала.
func TestHistoryEviction_FallsBackToJournal(t *testing.T) {
	e := New(Config{
		ExecutionStore: repo.NewMemoryExecutionStore(),
		HistoryLimit:   1,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	def, err := engine.NewBuilder("short", "Short").
		Start("start").
		End("end").
		Build()
	mustRegister(t, e, def, err)

	first, err := e.StartWorkflow(context.Background(), "short", "u", "c", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := e.StartWorkflow(context.Background(), "short", "u", "c", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	waitEvicted(t, e, first, second)

	s, err := e.GetExecutionStatus(context.Background(), first)
	if err != nil {
		t.Fatalf("status from journal: %v", err)
	}
	if s.Status != domain.ExecutionStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", s.Status)
	}
}

// waitEvicted дожидается, пока в памяти останется один из двух executions
// (учёт завершения идёт в отдельной горутине).
func waitEvicted(t *testing.T, e *Engine, ids ...uuid.UUID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.mu.RLock()
		n := len(e.executions)
		e.mu.RUnlock()
		if n <= 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("eviction did not happen for %v", ids)
}
