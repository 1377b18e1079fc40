package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/domain/delivery"
	"github.com/mailflow/mailflow/internal/domain/recipient"
	"github.com/mailflow/mailflow/internal/domain/storage"
	"github.com/mailflow/mailflow/internal/domain/template"
	"github.com/mailflow/mailflow/internal/queue"
)

var (
	ErrTemplateNotFound   = errors.New("email template not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrNoRecipients       = errors.New("recipient list is empty")
)

// SendRequest is one dispatch order: a template fanned out to a recipient set.
type SendRequest struct {
	TemplateID     int64             `json:"template_id,string"`
	RecipientIDs   []int64           `json:"recipient_ids"`
	Variables      map[string]string `json:"variables,omitempty"`
	AttachmentName string            `json:"attachment_name,omitempty"`
}

// SendResult reports a dispatch outcome. Recipients that could not be
// resolved are skipped and simply absent from DeliveryLogIDs.
type SendResult struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	DeliveryLogIDs []string `json:"delivery_log_ids"`
}

// UseCase turns a send request into per-recipient delivery logs and queue
// messages.
type UseCase struct {
	templates   template.Repository
	recipients  recipient.Repository
	deliveries  delivery.Repository
	publisher   queue.Publisher
	files       storage.FileStore
	logger      *zap.Logger
	maxAttempts int
}

func NewUseCase(
	templates template.Repository,
	recipients recipient.Repository,
	deliveries delivery.Repository,
	publisher queue.Publisher,
	files storage.FileStore,
	logger *zap.Logger,
	maxAttempts int,
) *UseCase {
	if maxAttempts <= 0 {
		maxAttempts = delivery.DefaultMaxAttempts
	}
	return &UseCase{
		templates:   templates,
		recipients:  recipients,
		deliveries:  deliveries,
		publisher:   publisher,
		files:       files,
		logger:      logger.Named("dispatch"),
		maxAttempts: maxAttempts,
	}
}

// Send expands the template per recipient, creates one Pending delivery log
// each, and publishes one queue message each. Template and attachment
// absence fail the whole batch before anything is written; a missing
// recipient only skips that recipient. A publish failure leaves the already
// created Pending log behind for the pending sweep to pick up.
func (uc *UseCase) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if len(req.RecipientIDs) == 0 {
		return nil, ErrNoRecipients
	}

	tpl, err := uc.templates.FindByID(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			return &SendResult{Success: false, Message: "email template not found"}, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("load template: %w", err)
	}

	if req.AttachmentName != "" && !uc.files.Exists(ctx, req.AttachmentName) {
		return &SendResult{
			Success: false,
			Message: fmt.Sprintf("attachment %q not found", req.AttachmentName),
		}, ErrAttachmentNotFound
	}

	createdIDs := make([]string, 0, len(req.RecipientIDs))

	for _, recipientID := range req.RecipientIDs {
		rcp, err := uc.recipients.FindByID(ctx, recipientID)
		if err != nil {
			if errors.Is(err, recipient.ErrNotFound) {
				uc.logger.Warn("recipient_not_found",
					zap.Int64("recipient_id", recipientID),
					zap.Int64("template_id", req.TemplateID),
				)
				continue
			}
			return nil, fmt.Errorf("load recipient %d: %w", recipientID, err)
		}

		// Caller-supplied variables win over recipient-derived ones.
		variables := rcp.TemplateVariables()
		for key, value := range req.Variables {
			variables[key] = value
		}

		subject, body := tpl.Expand(variables)

		log := delivery.NewLog(uuid.NewString(), rcp.ID, tpl.ID, subject, body, uc.maxAttempts)
		if err := uc.deliveries.Create(ctx, log); err != nil {
			return nil, fmt.Errorf("create delivery log: %w", err)
		}
		createdIDs = append(createdIDs, log.ID)

		msg := &queue.Message{
			DeliveryLogID:  log.ID,
			RecipientID:    rcp.ID,
			TemplateID:     tpl.ID,
			RecipientEmail: rcp.Email,
			RecipientName:  rcp.Name,
			Subject:        subject,
			Body:           body,
			AttachmentName: req.AttachmentName,
			Variables:      variables,
			AttemptCount:   0,
			CreatedAt:      time.Now().UTC(),
		}
		if err := uc.publisher.Publish(ctx, msg); err != nil {
			// The Pending row stays behind with no in-flight message; the
			// process-pending sweep re-publishes it.
			uc.logger.Error("publish_failed_orphaned_log",
				zap.Error(err),
				zap.String("delivery_log_id", log.ID),
			)
			continue
		}

		uc.logger.Info("delivery_enqueued",
			zap.String("delivery_log_id", log.ID),
			zap.String("recipient_email", rcp.Email),
		)
	}

	return &SendResult{
		Success:        true,
		Message:        fmt.Sprintf("%d emails queued for delivery", len(createdIDs)),
		DeliveryLogIDs: createdIDs,
	}, nil
}
