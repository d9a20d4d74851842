package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Maestro/internal/domain"
)

// WorkflowRepo — Postgres-хранилище определений workflow.
//
// Определение хранится целиком как JSONB: граф не нуждается в
// реляционной декомпозиции, читается и пишется только атомарно.
//
// Схема:
//
//	CREATE TABLE workflows (
//	    id         TEXT PRIMARY KEY,
//	    name       TEXT NOT NULL,
//	    version    TEXT NOT NULL,
//	    definition JSONB NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type WorkflowRepo struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepo создаёт новый WorkflowRepo.
func NewWorkflowRepo(pool *pgxpool.Pool) *WorkflowRepo {
	return &WorkflowRepo{pool: pool}
}

// Save сохраняет определение (upsert по ID).
func (r *WorkflowRepo) Save(ctx context.Context, def *domain.WorkflowDefinition) error {
	payload, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	query := `
		INSERT INTO workflows (id, name, version, definition, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = $2, version = $3, definition = $4, updated_at = now()
	`
	_, err = r.pool.Exec(ctx, query,
		def.ID,
		def.Name,
		def.Version,
		payload,
		def.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert workflow: %w", err)
	}
	return nil
}

// Get возвращает определение по ID.
func (r *WorkflowRepo) Get(ctx context.Context, id string) (*domain.WorkflowDefinition, error) {
	query := `SELECT definition FROM workflows WHERE id = $1`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow by id: %w", err)
	}

	var def domain.WorkflowDefinition
	if err := json.Unmarshal(payload, &def); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	return &def, nil
}

// List возвращает все определения.
func (r *WorkflowRepo) List(ctx context.Context) ([]*domain.WorkflowDefinition, error) {
	query := `SELECT definition FROM workflows ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var defs []*domain.WorkflowDefinition
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		var def domain.WorkflowDefinition
		if err := json.Unmarshal(payload, &def); err != nil {
			return nil, fmt.Errorf("unmarshal definition: %w", err)
		}
		defs = append(defs, &def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflows: %w", err)
	}
	return defs, nil
}
