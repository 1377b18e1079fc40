package queue

import (
	"context"
	"errors"
	"time"
)

// Message is the in-flight projection of a delivery log at publish time.
// It is owned by the broker until acknowledged or redelivered.
type Message struct {
	DeliveryLogID  string            `json:"delivery_log_id"`
	RecipientID    int64             `json:"recipient_id,string"`
	TemplateID     int64             `json:"template_id,string"`
	RecipientEmail string            `json:"recipient_email"`
	RecipientName  string            `json:"recipient_name"`
	Subject        string            `json:"subject"`
	Body           string            `json:"body"`
	AttachmentName string            `json:"attachment_name,omitempty"`
	Variables      map[string]string `json:"variables,omitempty"`
	AttemptCount   int               `json:"attempt_count"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ErrUnprocessable marks a delivery that can never succeed (e.g. a payload
// that does not decode). The consumer dead-letters it instead of requeueing.
var ErrUnprocessable = errors.New("unprocessable message")

// Handler processes one delivered message. Returning nil acknowledges it;
// returning an error leaves the requeue-or-dead-letter decision to the
// consumer implementation.
type Handler func(ctx context.Context, msg *Message) error

// Publisher persists a message to the durable channel. Publish returns once
// the broker has accepted the message for durable storage, not once it is
// delivered; connectivity errors propagate to the caller.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// Consumer delivers messages to a handler at least once. A message stays on
// the channel until the handler path acknowledges it.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
}
