package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/invsync/internal/database"
	apperrors "github.com/allisson/invsync/internal/errors"
	"github.com/allisson/invsync/internal/queue/domain"
)

// PostgreSQLOperationRepository handles operation persistence for PostgreSQL.
type PostgreSQLOperationRepository struct {
	db *sql.DB
}

// NewPostgreSQLOperationRepository creates a new PostgreSQLOperationRepository.
func NewPostgreSQLOperationRepository(db *sql.DB) *PostgreSQLOperationRepository {
	return &PostgreSQLOperationRepository{
		db: db,
	}
}

// Append inserts op and sets its store-assigned sequence.
func (r *PostgreSQLOperationRepository) Append(ctx context.Context, op *domain.Operation) error {
	querier := database.GetTx(ctx, r.db)

	effects, cacheKeys, err := encodeDescriptors(op)
	if err != nil {
		return err
	}

	query := `INSERT INTO operations (id, type, entity, endpoint, method, payload, effects, cache_keys, enqueued_at, attempts, status, last_error)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			  RETURNING seq`

	return querier.QueryRowContext(ctx, query, op.ID, op.Type, op.Entity, op.Endpoint, op.Method,
		string(op.Payload), string(effects), string(cacheKeys), op.EnqueuedAt, op.Attempts, op.Status,
		nullString(op.LastError)).Scan(&op.Seq)
}

// ListAll returns every stored operation in insertion order.
func (r *PostgreSQLOperationRepository) ListAll(ctx context.Context) ([]*domain.Operation, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + operationColumns + ` FROM operations ORDER BY seq ASC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	operations := make([]*domain.Operation, 0)
	for rows.Next() {
		op, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		operations = append(operations, op)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return operations, nil
}

// Get returns the operation with the given ID.
func (r *PostgreSQLOperationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + operationColumns + ` FROM operations WHERE id = $1`

	op, err := r.scan(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrOperationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get operation")
	}
	return op, nil
}

// Update writes the mutable fields of the operation with the given ID.
func (r *PostgreSQLOperationRepository) Update(ctx context.Context, id uuid.UUID, patch domain.StatePatch) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE operations SET attempts = $1, status = $2, last_error = $3 WHERE id = $4`

	result, err := querier.ExecContext(ctx, query, patch.Attempts, patch.Status, nullString(patch.LastError), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// Remove deletes the operation with the given ID.
func (r *PostgreSQLOperationRepository) Remove(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM operations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// RemoveAll deletes every stored operation.
func (r *PostgreSQLOperationRepository) RemoveAll(ctx context.Context) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM operations`)
	return err
}

func (r *PostgreSQLOperationRepository) scan(row rowScanner) (*domain.Operation, error) {
	var id uuid.UUID
	op, err := scanOperation(row, &id)
	if err != nil {
		return nil, err
	}
	op.ID = id
	return op, nil
}
