package delivery

import (
	"context"
	"time"
)

// Statistics holds per-status counts for reporting.
type Statistics struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Retrying   int64 `json:"retrying"`
	Failed     int64 `json:"failed"`
	Total      int64 `json:"total"`
}

// Repository defines the interface for persisting delivery logs.
//
// Status mutations are guarded single-row updates: an update names the
// states it may move away from, and reports false when the row has already
// moved on. This is what lets two workers race on a redelivered message
// without regressing a terminal state or double-counting attempts.
type Repository interface {
	// Create persists a new log.
	Create(ctx context.Context, log *Log) error

	// FindByID retrieves a log, ErrNotFound if absent.
	FindByID(ctx context.Context, id string) (*Log, error)

	// ListByStatus retrieves logs in a status, oldest first.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Log, error)

	// ListByRecipient retrieves a recipient's logs, newest first.
	ListByRecipient(ctx context.Context, recipientID int64) ([]*Log, error)

	// ListOverdueRetries retrieves Retrying logs whose next attempt was due
	// before the cutoff, oldest first.
	ListOverdueRetries(ctx context.Context, cutoff time.Time, limit int) ([]*Log, error)

	// BeginAttempt moves a log out of {Pending, Retrying, Processing} into
	// Processing and increments attempt_count, returning the updated log.
	// Returns (nil, nil) when the log is in a terminal state, so a duplicate
	// delivery is detected instead of re-attempted.
	BeginAttempt(ctx context.Context, id string) (*Log, error)

	// MarkSent completes an attempt. A log already in Sent is left untouched
	// and the call succeeds (duplicate deliveries are no-ops).
	MarkSent(ctx context.Context, log *Log) error

	// MarkRetrying records a retriable failure, guarded on Processing.
	MarkRetrying(ctx context.Context, log *Log) error

	// MarkFailed records a terminal failure, guarded on Processing.
	MarkFailed(ctx context.Context, log *Log) error

	// Reset returns a log to Pending for reprocessing, keeping attempt_count.
	Reset(ctx context.Context, log *Log) error

	// CountByStatus aggregates per-status counts.
	CountByStatus(ctx context.Context) (*Statistics, error)
}
