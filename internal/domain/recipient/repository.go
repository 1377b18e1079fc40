package recipient

import "context"

// Repository defines the interface for persisting recipients.
type Repository interface {
	Create(ctx context.Context, rcp *Recipient) error
	Update(ctx context.Context, rcp *Recipient) error
	Delete(ctx context.Context, id int64) error

	// FindByID retrieves a recipient, ErrNotFound if absent.
	FindByID(ctx context.Context, id int64) (*Recipient, error)

	// FindByEmail retrieves a recipient by email, ErrNotFound if absent.
	FindByEmail(ctx context.Context, email string) (*Recipient, error)

	List(ctx context.Context) ([]*Recipient, error)
}
