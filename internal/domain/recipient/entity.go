package recipient

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("recipient not found")
	ErrDuplicateEmail = errors.New("recipient email already in use")
)

// Recipient is someone emails get dispatched to, together with the
// per-recipient substitution source (Code is an opaque customer reference
// exposed to templates).
type Recipient struct {
	ID        int64     `json:"id,string"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an active recipient.
func New(id int64, name, email, code string) *Recipient {
	now := time.Now().UTC()
	return &Recipient{
		ID:        id,
		Name:      name,
		Email:     email,
		Code:      code,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TemplateVariables derives the substitution variables this recipient
// contributes to template expansion.
func (r *Recipient) TemplateVariables() map[string]string {
	return map[string]string{
		"recipient.name":  r.Name,
		"recipient.email": r.Email,
		"recipient.code":  r.Code,
	}
}
