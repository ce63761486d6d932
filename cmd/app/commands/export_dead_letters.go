package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/allisson/invsync/internal/archive"
	queueUseCase "github.com/allisson/invsync/internal/queue/usecase"
)

// RunExportDeadLetters writes every dead-lettered operation to archiver under key. An empty key
// names the export by the current time. The queue is left untouched.
func RunExportDeadLetters(
	ctx context.Context,
	queue queueUseCase.QueueUseCase,
	archiver *archive.Archiver,
	logger *slog.Logger,
	writer io.Writer,
	key string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	ops, err := queue.ListDeadLettered(ctx)
	if err != nil {
		return fmt.Errorf("failed to list dead letters: %w", err)
	}

	now := time.Now()
	if key == "" {
		key = archive.DefaultKey(now)
	}

	doc, err := archiver.Write(ctx, key, ops, now)
	if err != nil {
		return err
	}

	logger.Info("dead letters exported",
		slog.String("key", key),
		slog.Int("count", doc.Count),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"key":   key,
			"count": doc.Count,
		})
	}
	_, err = fmt.Fprintf(writer, "Exported %d dead letter(s) to %s\n", doc.Count, key)
	return err
}

// openArchiver opens the bucket and, when keyURI is set, the keeper that seals exports.
// The returned close func releases both.
func openArchiver(ctx context.Context, bucketURL, keyURI string) (*archive.Archiver, func(), error) {
	bucket, err := archive.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, nil, err
	}

	if keyURI == "" {
		return archive.NewArchiver(bucket, nil), func() { _ = bucket.Close() }, nil
	}

	keeper, err := archive.OpenKeeper(ctx, keyURI)
	if err != nil {
		_ = bucket.Close()
		return nil, nil, err
	}
	return archive.NewArchiver(bucket, keeper), func() {
		_ = keeper.Close()
		_ = bucket.Close()
	}, nil
}

// ExportDeadLetters opens the archive destination and runs RunExportDeadLetters.
func ExportDeadLetters(
	ctx context.Context,
	queue queueUseCase.QueueUseCase,
	logger *slog.Logger,
	writer io.Writer,
	bucketURL, keyURI, key, format string,
) error {
	archiver, closeArchiver, err := openArchiver(ctx, bucketURL, keyURI)
	if err != nil {
		return err
	}
	defer closeArchiver()

	return RunExportDeadLetters(ctx, queue, archiver, logger, writer, key, format)
}
