package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/domain/delivery"
	"github.com/mailflow/mailflow/internal/domain/recipient"
	"github.com/mailflow/mailflow/internal/queue"
)

// Reprocess resets a delivery log to Pending and re-publishes it. The
// attempt counter is deliberately carried over, so a log that already spent
// its budget fails terminally on the very next attempt.
func (uc *UseCase) Reprocess(ctx context.Context, deliveryLogID string) error {
	log, err := uc.deliveries.FindByID(ctx, deliveryLogID)
	if err != nil {
		return err
	}

	log.ResetForReprocess()
	if err := uc.deliveries.Reset(ctx, log); err != nil {
		return err
	}

	if err := uc.republish(ctx, log); err != nil {
		return fmt.Errorf("republish delivery log %s: %w", log.ID, err)
	}

	uc.logger.Info("delivery_reprocessed",
		zap.String("delivery_log_id", log.ID),
		zap.Int("attempt_count", log.AttemptCount),
	)
	return nil
}

// ProcessPending is the administrative sweep compensating orphaned creates:
// every Pending log gets a fresh queue message. Duplicates with a message
// still in flight are harmless; the worker's guarded transitions absorb them.
func (uc *UseCase) ProcessPending(ctx context.Context) (int, error) {
	logs, err := uc.deliveries.ListByStatus(ctx, delivery.StatusPending, 0)
	if err != nil {
		return 0, fmt.Errorf("list pending logs: %w", err)
	}

	published := 0
	for _, log := range logs {
		if err := uc.republish(ctx, log); err != nil {
			uc.logger.Error("pending_republish_failed",
				zap.Error(err),
				zap.String("delivery_log_id", log.ID),
			)
			continue
		}
		published++
	}

	uc.logger.Info("pending_sweep_completed",
		zap.Int("found", len(logs)),
		zap.Int("published", published),
	)
	return published, nil
}

// republish builds a queue message from the stored log. Subject and body
// come from the log (already expanded); only the recipient address needs a
// lookup.
func (uc *UseCase) republish(ctx context.Context, log *delivery.Log) error {
	rcp, err := uc.recipients.FindByID(ctx, log.RecipientID)
	if err != nil {
		if errors.Is(err, recipient.ErrNotFound) {
			return fmt.Errorf("recipient %d no longer exists", log.RecipientID)
		}
		return err
	}

	return uc.publisher.Publish(ctx, &queue.Message{
		DeliveryLogID:  log.ID,
		RecipientID:    log.RecipientID,
		TemplateID:     log.TemplateID,
		RecipientEmail: rcp.Email,
		RecipientName:  rcp.Name,
		Subject:        log.Subject,
		Body:           log.Body,
		AttemptCount:   log.AttemptCount,
		CreatedAt:      time.Now().UTC(),
	})
}
