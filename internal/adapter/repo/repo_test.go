package repo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"contentfabric/internal/domain"
	"contentfabric/internal/sqlinline"
)

type execCall struct {
	query string
	args  []any
}

type stubExecutor struct {
	tag     pgconn.CommandTag
	execErr error
	row     pgx.Row
	calls   []execCall
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, execCall{query: query, args: args})
	return s.tag, s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, execCall{query: query, args: args})
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

func TestUpdateTaskSendsNormalizedPatch(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewGenerationRepository(exec)

	ok, err := repo.UpdateTask(context.Background(), "g1", 2, domain.TaskUpdate{
		Status:   domain.TaskStatusCompleted,
		ResultID: "r1",
		Error:    "stale",
	})
	if err != nil {
		t.Fatalf("UpdateTask error: %v", err)
	}
	if !ok {
		t.Fatal("expected update to apply")
	}
	call := exec.calls[0]
	if call.query != sqlinline.QUpdateGenerationTask {
		t.Fatalf("unexpected query %q", call.query)
	}
	if call.args[1] != 2 {
		t.Fatalf("index arg = %v", call.args[1])
	}
	var patch map[string]string
	if err := json.Unmarshal(call.args[2].([]byte), &patch); err != nil {
		t.Fatalf("patch not json: %v", err)
	}
	if patch["status"] != "completed" || patch["result_id"] != "r1" {
		t.Fatalf("unexpected patch %v", patch)
	}
	if _, ok := patch["error"]; ok {
		t.Fatalf("error must be dropped for completed tasks: %v", patch)
	}
	if call.args[3] != "completed" {
		t.Fatalf("guard arg = %v", call.args[3])
	}
}

func TestUpdateTaskReportsGuardedNoop(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("UPDATE 0")}
	repo := NewGenerationRepository(exec)
	ok, err := repo.UpdateTask(context.Background(), "g1", 0, domain.TaskUpdate{Status: domain.TaskStatusFailed, Error: "x"})
	if err != nil {
		t.Fatalf("UpdateTask error: %v", err)
	}
	if ok {
		t.Fatal("expected no-op")
	}
}

func TestTransitionStatusIsConditional(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("UPDATE 0")}
	repo := NewGenerationRepository(exec)
	ok, err := repo.TransitionStatus(context.Background(), "g1", domain.GenerationStatusDraft, domain.GenerationStatusProcessing)
	if err != nil || ok {
		t.Fatalf("expected lost race, got ok=%v err=%v", ok, err)
	}
	args := exec.calls[0].args
	if args[1] != "draft" || args[2] != "processing" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestParameterCreateConflict(t *testing.T) {
	exec := &stubExecutor{execErr: &pgconn.PgError{Code: "23505"}}
	repo := NewParameterRepository(exec)
	err := repo.Create(context.Background(), &domain.Parameter{ID: "p1", Name: "style", Values: []string{"a"}, CreatedAt: time.Now()})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestPromptCreateConflict(t *testing.T) {
	exec := &stubExecutor{execErr: &pgconn.PgError{Code: "23505"}}
	repo := NewPromptRepository(exec)
	err := repo.Create(context.Background(), &domain.GeneratedPrompt{ID: "p1", TemplateID: "t1", Text: "x"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	raw := exec.calls[0].args[3].([]byte)
	if string(raw) != "[]" {
		t.Fatalf("nil parameter values must encode as [], got %s", raw)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	exec := &stubExecutor{row: errRow{err: pgx.ErrNoRows}}
	store := NewStore(exec)

	if _, err := store.Generations.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("generation: expected not found, got %v", err)
	}
	if _, err := store.Templates.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("template: expected not found, got %v", err)
	}
	if _, err := store.Results.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("result: expected not found, got %v", err)
	}
}

func TestDeleteMissingRow(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("DELETE 0")}
	repo := NewParameterRepository(exec)
	if err := repo.Delete(context.Background(), "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
