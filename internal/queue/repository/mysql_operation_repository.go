package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/invsync/internal/database"
	apperrors "github.com/allisson/invsync/internal/errors"
	"github.com/allisson/invsync/internal/queue/domain"
)

// MySQLOperationRepository handles operation persistence for MySQL.
type MySQLOperationRepository struct {
	db *sql.DB
}

// NewMySQLOperationRepository creates a new MySQLOperationRepository.
func NewMySQLOperationRepository(db *sql.DB) *MySQLOperationRepository {
	return &MySQLOperationRepository{
		db: db,
	}
}

// Append inserts op and sets its store-assigned sequence.
func (r *MySQLOperationRepository) Append(ctx context.Context, op *domain.Operation) error {
	querier := database.GetTx(ctx, r.db)

	effects, cacheKeys, err := encodeDescriptors(op)
	if err != nil {
		return err
	}

	// Convert UUID to bytes for MySQL BINARY(16)
	idBytes, err := op.ID.MarshalBinary()
	if err != nil {
		return err
	}

	query := `INSERT INTO operations (id, type, entity, endpoint, method, payload, effects, cache_keys, enqueued_at, attempts, status, last_error)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := querier.ExecContext(ctx, query, idBytes, op.Type, op.Entity, op.Endpoint, op.Method,
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
func (r *MySQLOperationRepository) ListAll(ctx context.Context) ([]*domain.Operation, error) {
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
func (r *MySQLOperationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + operationColumns + ` FROM operations WHERE id = ?`

	op, err := r.scan(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrOperationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get operation")
	}
	return op, nil
}

// Update writes the mutable fields of the operation with the given ID.
func (r *MySQLOperationRepository) Update(ctx context.Context, id uuid.UUID, patch domain.StatePatch) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	query := `UPDATE operations SET attempts = ?, status = ?, last_error = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, patch.Attempts, patch.Status, nullString(patch.LastError), idBytes)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// MySQL reports zero affected rows when the new values equal the stored ones.
	var exists int
	err = querier.QueryRowContext(ctx, `SELECT 1 FROM operations WHERE id = ?`, idBytes).Scan(&exists)
	if err == sql.ErrNoRows {
		return domain.ErrOperationNotFound
	}
	return err
}

// Remove deletes the operation with the given ID.
func (r *MySQLOperationRepository) Remove(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, idBytes)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// RemoveAll deletes every stored operation.
func (r *MySQLOperationRepository) RemoveAll(ctx context.Context) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM operations`)
	return err
}

func (r *MySQLOperationRepository) scan(row rowScanner) (*domain.Operation, error) {
	var idBytes []byte
	op, err := scanOperation(row, &idBytes)
	if err != nil {
		return nil, err
	}

	// Convert bytes back to UUID
	if err := op.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	return op, nil
}
