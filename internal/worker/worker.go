package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/domain/delivery"
	"github.com/mailflow/mailflow/internal/domain/mailer"
	"github.com/mailflow/mailflow/internal/domain/storage"
	"github.com/mailflow/mailflow/internal/queue"
)

// Worker consumes queue messages and drives the delivery log state machine:
// Pending -> Processing -> {Sent | Retrying | Failed}, with Retrying fed
// back through a delayed re-publish.
type Worker struct {
	deliveries delivery.Repository
	sender     mailer.Sender
	files      storage.FileStore
	publisher  queue.Publisher
	consumer   queue.Consumer
	logger     *zap.Logger
	retryDelay time.Duration
}

func New(
	deliveries delivery.Repository,
	sender mailer.Sender,
	files storage.FileStore,
	publisher queue.Publisher,
	consumer queue.Consumer,
	logger *zap.Logger,
	retryDelay time.Duration,
) *Worker {
	if retryDelay <= 0 {
		retryDelay = 60 * time.Second
	}
	return &Worker{
		deliveries: deliveries,
		sender:     sender,
		files:      files,
		publisher:  publisher,
		consumer:   consumer,
		logger:     logger.Named("delivery.worker"),
		retryDelay: retryDelay,
	}
}

// Run blocks consuming the queue until ctx is cancelled. Scheduled retries
// that have not fired when the process stops are lost; the overdue-retry
// reconciler re-publishes them.
func (w *Worker) Run(ctx context.Context) error {
	return w.consumer.Consume(ctx, w.Handle)
}

// Handle processes one delivered message. It never returns an error for a
// delivery failure: failures become status transitions so the consume loop
// keeps running and the message is acknowledged. The only errors returned
// are infrastructure faults on the initial claim, which are worth one
// broker-level redelivery.
func (w *Worker) Handle(ctx context.Context, msg *queue.Message) error {
	log, err := w.deliveries.BeginAttempt(ctx, msg.DeliveryLogID)
	if err != nil {
		if errors.Is(err, delivery.ErrNotFound) {
			// Nothing to update; retrying a nonexistent record cannot succeed.
			w.logger.Warn("delivery_log_missing",
				zap.String("delivery_log_id", msg.DeliveryLogID),
			)
			droppedTotal.Inc()
			return nil
		}
		return err
	}
	if log == nil {
		// Terminal already: a duplicate delivery after broker failover.
		w.logger.Info("duplicate_delivery_ignored",
			zap.String("delivery_log_id", msg.DeliveryLogID),
		)
		return nil
	}

	attemptsTotal.Inc()
	w.logger.Info("delivery_attempt_started",
		zap.String("delivery_log_id", log.ID),
		zap.String("recipient_email", msg.RecipientEmail),
		zap.Int("attempt", log.AttemptCount),
	)

	sendErr := w.sender.Send(ctx, mailer.Mail{
		ToEmail:        msg.RecipientEmail,
		ToName:         msg.RecipientName,
		Subject:        log.Subject,
		HTMLBody:       log.Body,
		AttachmentPath: w.resolveAttachment(ctx, msg),
	})
	if sendErr == nil {
		w.markSent(ctx, log)
		return nil
	}

	w.markFailure(ctx, log, msg, sendErr)
	return nil
}

// resolveAttachment maps the stored name to a path. A file that vanished
// since dispatch is not fatal; the mail goes out without it.
func (w *Worker) resolveAttachment(ctx context.Context, msg *queue.Message) string {
	if msg.AttachmentName == "" {
		return ""
	}
	if !w.files.Exists(ctx, msg.AttachmentName) {
		w.logger.Warn("attachment_missing",
			zap.String("attachment", msg.AttachmentName),
			zap.String("delivery_log_id", msg.DeliveryLogID),
		)
		return ""
	}
	path, err := w.files.Path(msg.AttachmentName)
	if err != nil {
		w.logger.Warn("attachment_unresolvable",
			zap.Error(err),
			zap.String("attachment", msg.AttachmentName),
		)
		return ""
	}
	return path
}

func (w *Worker) markSent(ctx context.Context, log *delivery.Log) {
	log.MarkSent()
	if err := w.deliveries.MarkSent(ctx, log); err != nil {
		// Acknowledged anyway; the row stays inconsistent until a manual
		// reprocess rather than looping at the broker.
		w.logger.Error("mark_sent_failed",
			zap.Error(err),
			zap.String("delivery_log_id", log.ID),
		)
		return
	}
	outcomesTotal.WithLabelValues("sent").Inc()
	w.logger.Info("delivery_sent",
		zap.String("delivery_log_id", log.ID),
		zap.Int("attempt", log.AttemptCount),
	)
}

func (w *Worker) markFailure(ctx context.Context, log *delivery.Log, msg *queue.Message, cause error) {
	if log.ShouldRetry() {
		log.MarkRetrying(cause.Error(), w.retryDelay)
		if err := w.deliveries.MarkRetrying(ctx, log); err != nil {
			w.logger.Error("mark_retrying_failed",
				zap.Error(err),
				zap.String("delivery_log_id", log.ID),
			)
			return
		}
		outcomesTotal.WithLabelValues("retrying").Inc()
		w.logger.Warn("delivery_retry_scheduled",
			zap.String("delivery_log_id", log.ID),
			zap.Int("attempt", log.AttemptCount),
			zap.Int("max_attempts", log.MaxAttempts),
			zap.Duration("delay", w.retryDelay),
		)
		// The retry is only published after the log update above completed,
		// which keeps attempts for one log ordered.
		w.scheduleRetry(ctx, log, msg)
		return
	}

	log.MarkFailed(cause.Error())
	if err := w.deliveries.MarkFailed(ctx, log); err != nil {
		w.logger.Error("mark_failed_failed",
			zap.Error(err),
			zap.String("delivery_log_id", log.ID),
		)
		return
	}
	outcomesTotal.WithLabelValues("failed").Inc()
	w.logger.Error("delivery_failed_terminally",
		zap.String("delivery_log_id", log.ID),
		zap.Int("attempts", log.AttemptCount),
	)
}

// scheduleRetry re-publishes the message after the configured delay without
// blocking the consume loop. The timer dies with the context; reconciliation
// of lost timers happens through next_attempt_at.
func (w *Worker) scheduleRetry(ctx context.Context, log *delivery.Log, msg *queue.Message) {
	retry := &queue.Message{
		DeliveryLogID:  log.ID,
		RecipientID:    log.RecipientID,
		TemplateID:     log.TemplateID,
		RecipientEmail: msg.RecipientEmail,
		RecipientName:  msg.RecipientName,
		Subject:        log.Subject,
		Body:           log.Body,
		AttachmentName: msg.AttachmentName,
		Variables:      msg.Variables,
		AttemptCount:   log.AttemptCount,
		CreatedAt:      time.Now().UTC(),
	}

	go func() {
		timer := time.NewTimer(w.retryDelay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := w.publisher.Publish(context.WithoutCancel(ctx), retry); err != nil {
			w.logger.Error("retry_publish_failed",
				zap.Error(err),
				zap.String("delivery_log_id", retry.DeliveryLogID),
			)
			return
		}
		w.logger.Info("retry_published",
			zap.String("delivery_log_id", retry.DeliveryLogID),
			zap.Int("attempt_count", retry.AttemptCount),
		)
	}()
}
