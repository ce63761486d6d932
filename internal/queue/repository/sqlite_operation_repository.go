package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/invsync/internal/database"
	apperrors "github.com/allisson/invsync/internal/errors"
	"github.com/allisson/invsync/internal/queue/domain"
)

// SQLiteOperationRepository handles operation persistence for SQLite, the default on-device store.
type SQLiteOperationRepository struct {
	db *sql.DB
}

// NewSQLiteOperationRepository creates a new SQLiteOperationRepository.
func NewSQLiteOperationRepository(db *sql.DB) *SQLiteOperationRepository {
	return &SQLiteOperationRepository{
		db: db,
	}
}

// Append inserts op and sets its store-assigned sequence.
func (r *SQLiteOperationRepository) Append(ctx context.Context, op *domain.Operation) error {
	querier := database.GetTx(ctx, r.db)

	effects, cacheKeys, err := encodeDescriptors(op)
	if err != nil {
		return err
	}

	query := `INSERT INTO operations (id, type, entity, endpoint, method, payload, effects, cache_keys, enqueued_at, attempts, status, last_error)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := querier.ExecContext(ctx, query, op.ID.String(), op.Type, op.Entity, op.Endpoint, op.Method,
		string(op.Payload), string(effects), string(cacheKeys), op.EnqueuedAt, op.Attempts, op.Status,
		nullString(op.LastError))
	if err != nil {
		return err
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return err
	}
	op.Seq = seq
	return nil
}

// ListAll returns every stored operation in insertion order.
func (r *SQLiteOperationRepository) ListAll(ctx context.Context) ([]*domain.Operation, error) {
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
func (r *SQLiteOperationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + operationColumns + ` FROM operations WHERE id = ?`

	op, err := r.scan(querier.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrOperationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get operation")
	}
	return op, nil
}

// Update writes the mutable fields of the operation with the given ID.
func (r *SQLiteOperationRepository) Update(ctx context.Context, id uuid.UUID, patch domain.StatePatch) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE operations SET attempts = ?, status = ?, last_error = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, patch.Attempts, patch.Status, nullString(patch.LastError), id.String())
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// Remove deletes the operation with the given ID.
func (r *SQLiteOperationRepository) Remove(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// RemoveAll deletes every stored operation.
func (r *SQLiteOperationRepository) RemoveAll(ctx context.Context) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM operations`)
	return err
}

func (r *SQLiteOperationRepository) scan(row rowScanner) (*domain.Operation, error) {
	var id string
	op, err := scanOperation(row, &id)
	if err != nil {
		return nil, err
	}
	if op.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	return op, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrOperationNotFound
	}
	return nil
}
