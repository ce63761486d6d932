package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/google/uuid"

	queueDomain "github.com/allisson/invsync/internal/queue/domain"
	"github.com/allisson/invsync/internal/queue/http/dto"
	queueUseCase "github.com/allisson/invsync/internal/queue/usecase"
)

// RunListOperations prints the replayable queue in FIFO order, or the dead letters when
// deadLettered is set.
func RunListOperations(
	ctx context.Context,
	queue queueUseCase.QueueUseCase,
	logger *slog.Logger,
	writer io.Writer,
	deadLettered bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	var (
		ops []*queueDomain.Operation
		err error
	)
	if deadLettered {
		ops, err = queue.ListDeadLettered(ctx)
	} else {
		ops, err = queue.ListPending(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list operations: %w", err)
	}

	logger.Debug("operations listed",
		slog.Int("count", len(ops)),
		slog.Bool("dead_lettered", deadLettered),
	)

	if format == "json" {
		return writeJSON(writer, dto.MapOperationsToListResponse(ops, 0, len(ops)))
	}

	if len(ops) == 0 {
		_, err := fmt.Fprintln(writer, "No operations found")
		return err
	}

	tw := tabwriter.NewWriter(writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTYPE\tENTITY\tSTATUS\tATTEMPTS\tLAST ERROR")
	for _, op := range ops {
		lastError := "-"
		if op.LastError != nil {
			lastError = *op.LastError
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			op.ID, op.Type, op.Entity, op.Status, op.Attempts, lastError)
	}
	return tw.Flush()
}

// RunRetryOperation moves a dead-lettered operation back to pending. A running server replays
// it on its next connectivity event.
func RunRetryOperation(
	ctx context.Context,
	queue queueUseCase.QueueUseCase,
	logger *slog.Logger,
	writer io.Writer,
	id string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	operationID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid operation id: %w", err)
	}

	op, err := queue.Retry(ctx, operationID)
	if err != nil {
		return fmt.Errorf("failed to retry operation: %w", err)
	}

	logger.Info("operation returned to queue", slog.String("operation_id", op.ID.String()))

	if format == "json" {
		return writeJSON(writer, dto.MapOperationToResponse(op))
	}
	_, err = fmt.Fprintf(writer, "Operation %s returned to the queue\n", op.ID)
	return err
}

// RunDiscardOperation removes an operation and reverts its optimistic effects.
func RunDiscardOperation(
	ctx context.Context,
	queue queueUseCase.QueueUseCase,
	logger *slog.Logger,
	writer io.Writer,
	id string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	operationID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid operation id: %w", err)
	}

	if err := queue.Discard(ctx, operationID); err != nil {
		return fmt.Errorf("failed to discard operation: %w", err)
	}

	logger.Info("operation discarded", slog.String("operation_id", operationID.String()))

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"id":        operationID.String(),
			"discarded": true,
		})
	}
	_, err = fmt.Fprintf(writer, "Operation %s discarded\n", operationID)
	return err
}

// RunClearQueue drops every queued operation, dead letters included. Asks for confirmation
// unless force is set.
func RunClearQueue(
	ctx context.Context,
	queue queueUseCase.QueueUseCase,
	logger *slog.Logger,
	streams IOTuple,
	force bool,
) error {
	count, err := queue.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to count operations: %w", err)
	}
	deadLetters, err := queue.ListDeadLettered(ctx)
	if err != nil {
		return fmt.Errorf("failed to count operations: %w", err)
	}
	total := count + len(deadLetters)

	if !force {
		ok, err := confirm(streams, fmt.Sprintf("Discard %d queued operation(s)?", total))
		if err != nil {
			return err
		}
		if !ok {
			_, err := fmt.Fprintln(streams.Writer, "Aborted")
			return err
		}
	}

	if err := queue.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	logger.Info("queue cleared", slog.Int("count", total))

	_, err = fmt.Fprintf(streams.Writer, "Cleared %d operation(s)\n", total)
	return err
}
