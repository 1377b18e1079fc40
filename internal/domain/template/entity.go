package template

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("email template not found")
	ErrDuplicateName = errors.New("email template name already in use")
)

// Template is a named, reusable subject/body pair with {var} placeholders.
type Template struct {
	ID        int64     `json:"id,string"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an active template.
func New(id int64, name, subject, body string) *Template {
	now := time.Now().UTC()
	return &Template{
		ID:        id,
		Name:      name,
		Subject:   subject,
		Body:      body,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Expand substitutes every {key} occurrence in subject and body with the
// matching variable value. Placeholders without a matching key stay verbatim;
// substitution is literal string replacement, not a templating language.
func (t *Template) Expand(variables map[string]string) (subject, body string) {
	subject = t.Subject
	body = t.Body

	for key, value := range variables {
		placeholder := "{" + key + "}"
		subject = strings.ReplaceAll(subject, placeholder, value)
		body = strings.ReplaceAll(body, placeholder, value)
	}

	return subject, body
}
