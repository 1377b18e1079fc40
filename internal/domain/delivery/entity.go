package delivery

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a delivery log.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusSent       Status = "Sent"
	StatusRetrying   Status = "Retrying"
	StatusFailed     Status = "Failed"
)

// DefaultMaxAttempts bounds the attempt series when no override is configured.
const DefaultMaxAttempts = 3

var (
	ErrNotFound      = errors.New("delivery log not found")
	ErrInvalidStatus = errors.New("invalid delivery status")
)

// ParseStatus resolves a status string case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "processing":
		return StatusProcessing, nil
	case "sent":
		return StatusSent, nil
	case "retrying":
		return StatusRetrying, nil
	case "failed":
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// IsTerminal reports whether no further automatic transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Log is the durable record of one recipient's send attempt series.
// Subject and body are fully expanded at creation time and never change.
type Log struct {
	ID           string `json:"id"`
	RecipientID  int64  `json:"recipient_id,string"`
	TemplateID   int64  `json:"template_id,string"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	Status       Status `json:"status"`
	AttemptCount int    `json:"attempt_count"`
	MaxAttempts  int    `json:"max_attempts"`
	ErrorMessage string `json:"error_message,omitempty"`

	SentAt        *time.Time `json:"sent_at,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewLog creates a pending log for one recipient of a send request.
func NewLog(id string, recipientID, templateID int64, subject, body string, maxAttempts int) *Log {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	now := time.Now().UTC()
	return &Log{
		ID:           id,
		RecipientID:  recipientID,
		TemplateID:   templateID,
		Subject:      subject,
		Body:         body,
		Status:       StatusPending,
		AttemptCount: 0,
		MaxAttempts:  maxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ShouldRetry reports whether another attempt may be scheduled.
// AttemptCount counts started attempts, so a log whose n-th attempt just
// failed retries only while n < MaxAttempts.
func (l *Log) ShouldRetry() bool {
	return l.AttemptCount < l.MaxAttempts
}

// MarkProcessing starts an attempt: bumps the counter before the transport
// call so AttemptCount == n means "the n-th attempt has started".
func (l *Log) MarkProcessing() {
	l.Status = StatusProcessing
	l.AttemptCount++
	l.UpdatedAt = time.Now().UTC()
}

// MarkSent records a successful delivery. Idempotent: a log already in Sent
// keeps its original SentAt and AttemptCount.
func (l *Log) MarkSent() {
	if l.Status == StatusSent {
		return
	}
	now := time.Now().UTC()
	l.Status = StatusSent
	l.SentAt = &now
	l.ErrorMessage = ""
	l.NextAttemptAt = nil
	l.UpdatedAt = now
}

// MarkRetrying records a retriable failure and the moment the next attempt
// becomes due.
func (l *Log) MarkRetrying(cause string, delay time.Duration) {
	now := time.Now().UTC()
	due := now.Add(delay)
	l.Status = StatusRetrying
	l.ErrorMessage = fmt.Sprintf("attempt %d/%d: %s", l.AttemptCount, l.MaxAttempts, cause)
	l.NextAttemptAt = &due
	l.UpdatedAt = now
}

// MarkFailed records a terminal failure after the attempt budget is spent.
func (l *Log) MarkFailed(cause string) {
	l.Status = StatusFailed
	l.ErrorMessage = fmt.Sprintf("final failure after %d attempts: %s", l.AttemptCount, cause)
	l.NextAttemptAt = nil
	l.UpdatedAt = time.Now().UTC()
}

// ResetForReprocess puts the log back in Pending so a consumer picks it up
// again. AttemptCount is deliberately preserved: reprocessing continues the
// attempt series rather than restarting it.
func (l *Log) ResetForReprocess() {
	l.Status = StatusPending
	l.ErrorMessage = ""
	l.NextAttemptAt = nil
	l.UpdatedAt = time.Now().UTC()
}
