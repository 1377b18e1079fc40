package template

import "context"

// Repository defines the interface for persisting templates.
type Repository interface {
	Create(ctx context.Context, tpl *Template) error
	Update(ctx context.Context, tpl *Template) error
	Delete(ctx context.Context, id int64) error

	// FindByID retrieves a template, ErrNotFound if absent.
	FindByID(ctx context.Context, id int64) (*Template, error)

	// FindByName retrieves a template by its unique name, ErrNotFound if absent.
	FindByName(ctx context.Context, name string) (*Template, error)

	List(ctx context.Context) ([]*Template, error)
}
