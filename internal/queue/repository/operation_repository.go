// Package repository provides durable storage for queued operations on SQLite, PostgreSQL and MySQL.
package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/allisson/invsync/internal/queue/domain"
)

const operationColumns = `seq, id, type, entity, endpoint, method, payload, effects, cache_keys, enqueued_at, attempts, status, last_error`

type rowScanner interface {
	Scan(dest ...any) error
}

// encodeDescriptors serializes the effect and cache key lists of op.
func encodeDescriptors(op *domain.Operation) (effects, cacheKeys []byte, err error) {
	opEffects := op.Effects
	if opEffects == nil {
		opEffects = []domain.Effect{}
	}
	opCacheKeys := op.CacheKeys
	if opCacheKeys == nil {
		opCacheKeys = []string{}
	}

	if effects, err = json.Marshal(opEffects); err != nil {
		return nil, nil, err
	}
	if cacheKeys, err = json.Marshal(opCacheKeys); err != nil {
		return nil, nil, err
	}
	return effects, cacheKeys, nil
}

// scanOperation reads one row selected with operationColumns. id receives the driver's ID
// representation and is decoded by the caller.
func scanOperation(row rowScanner, id any) (*domain.Operation, error) {
	var (
		op         domain.Operation
		payload    []byte
		effects    []byte
		cacheKeys  []byte
		enqueuedAt time.Time
		lastError  sql.NullString
	)

	err := row.Scan(&op.Seq, id, &op.Type, &op.Entity, &op.Endpoint, &op.Method, &payload,
		&effects, &cacheKeys, &enqueuedAt, &op.Attempts, &op.Status, &lastError)
	if err != nil {
		return nil, err
	}

	op.Payload = json.RawMessage(payload)
	op.EnqueuedAt = enqueuedAt.UTC()
	if lastError.Valid {
		op.LastError = &lastError.String
	}
	if err := json.Unmarshal(effects, &op.Effects); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cacheKeys, &op.CacheKeys); err != nil {
		return nil, err
	}

	return &op, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
