package dispatch

import (
	"context"

	"github.com/mailflow/mailflow/internal/domain/delivery"
)

// Log retrieves one delivery log.
func (uc *UseCase) Log(ctx context.Context, id string) (*delivery.Log, error) {
	return uc.deliveries.FindByID(ctx, id)
}

// LogsByStatus retrieves delivery logs in a given status, oldest first.
func (uc *UseCase) LogsByStatus(ctx context.Context, status delivery.Status) ([]*delivery.Log, error) {
	return uc.deliveries.ListByStatus(ctx, status, 0)
}

// LogsByRecipient retrieves a recipient's delivery logs, newest first.
func (uc *UseCase) LogsByRecipient(ctx context.Context, recipientID int64) ([]*delivery.Log, error) {
	return uc.deliveries.ListByRecipient(ctx, recipientID)
}

// Statistics aggregates per-status delivery counts.
func (uc *UseCase) Statistics(ctx context.Context) (*delivery.Statistics, error) {
	return uc.deliveries.CountByStatus(ctx)
}
