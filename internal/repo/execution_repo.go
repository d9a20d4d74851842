package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Maestro/internal/domain"
)

// ExecutionRepo — Postgres-журнал executions.
//
// Снимок хранится как JSONB, статус продублирован колонкой для
// фильтрации без распаковки документа.
//
// Схема:
//
//	CREATE TABLE executions (
//	    id          UUID PRIMARY KEY,
//	    workflow_id TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    snapshot    JSONB NOT NULL,
//	    started_at  TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX executions_status_idx ON executions (status);
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// Save записывает снимок (upsert по execution ID).
func (r *ExecutionRepo) Save(ctx context.Context, snap *domain.ExecutionSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, snapshot, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET status = $3, snapshot = $4, updated_at = now()
	`
	_, err = r.pool.Exec(ctx, query,
		snap.ExecutionID,
		snap.WorkflowID,
		string(snap.Status),
		payload,
		snap.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert execution: %w", err)
	}
	return nil
}

// Get возвращает снимок по ID.
func (r *ExecutionRepo) Get(ctx context.Context, executionID uuid.UUID) (*domain.ExecutionSnapshot, error) {
	query := `SELECT snapshot FROM executions WHERE id = $1`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, executionID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution by id: %w", err)
	}

	var snap domain.ExecutionSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// List возвращает снимки с опциональным фильтром по статусу.
func (r *ExecutionRepo) List(ctx context.Context, status domain.ExecutionStatus) ([]*domain.ExecutionSnapshot, error) {
	query := `SELECT snapshot FROM executions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY started_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.ExecutionSnapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		var snap domain.ExecutionSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return snaps, nil
}
