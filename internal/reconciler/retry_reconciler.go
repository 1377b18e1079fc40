package reconciler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/domain/delivery"
	"github.com/mailflow/mailflow/internal/domain/recipient"
	"github.com/mailflow/mailflow/internal/queue"
)

// RetryReconciler re-publishes Retrying logs whose scheduled attempt is
// overdue. The worker's retry timer lives in process memory; when a worker
// dies between scheduling and firing, next_attempt_at is the durable record
// this sweep recovers from. The grace period keeps it from racing timers
// that are merely about to fire.
type RetryReconciler struct {
	deliveries delivery.Repository
	recipients recipient.Repository
	publisher  queue.Publisher
	logger     *zap.Logger
	interval   time.Duration
	grace      time.Duration
	batchSize  int
}

func NewRetryReconciler(
	deliveries delivery.Repository,
	recipients recipient.Repository,
	publisher queue.Publisher,
	logger *zap.Logger,
) *RetryReconciler {
	return &RetryReconciler{
		deliveries: deliveries,
		recipients: recipients,
		publisher:  publisher,
		logger:     logger.Named("retry.reconciler"),
		interval:   30 * time.Second,
		grace:      2 * time.Minute,
		batchSize:  50,
	}
}

func (r *RetryReconciler) Run(ctx context.Context) {
	if err := r.reconcile(ctx); err != nil {
		r.logger.Error("reconcile_initial_failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.reconcile(ctx); err != nil {
				r.logger.Error("reconcile_failed", zap.Error(err))
			}
		}
	}
}

func (r *RetryReconciler) reconcile(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.grace)
	logs, err := r.deliveries.ListOverdueRetries(ctx, cutoff, r.batchSize)
	if err != nil {
		return err
	}

	for _, log := range logs {
		r.republish(ctx, log)
	}
	return nil
}

func (r *RetryReconciler) republish(ctx context.Context, log *delivery.Log) {
	rcp, err := r.recipients.FindByID(ctx, log.RecipientID)
	if err != nil {
		if errors.Is(err, recipient.ErrNotFound) {
			r.logger.Warn("overdue_retry_recipient_missing",
				zap.String("delivery_log_id", log.ID),
				zap.Int64("recipient_id", log.RecipientID),
			)
			return
		}
		r.logger.Error("overdue_retry_lookup_failed",
			zap.Error(err),
			zap.String("delivery_log_id", log.ID),
		)
		return
	}

	msg := &queue.Message{
		DeliveryLogID:  log.ID,
		RecipientID:    log.RecipientID,
		TemplateID:     log.TemplateID,
		RecipientEmail: rcp.Email,
		RecipientName:  rcp.Name,
		Subject:        log.Subject,
		Body:           log.Body,
		AttemptCount:   log.AttemptCount,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.publisher.Publish(ctx, msg); err != nil {
		r.logger.Error("overdue_retry_publish_failed",
			zap.Error(err),
			zap.String("delivery_log_id", log.ID),
		)
		return
	}

	r.logger.Info("overdue_retry_republished",
		zap.String("delivery_log_id", log.ID),
		zap.Int("attempt_count", log.AttemptCount),
	)
}
