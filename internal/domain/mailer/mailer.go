package mailer

import "context"

// Mail is one outbound message handed to the transport.
type Mail struct {
	ToEmail        string
	ToName         string
	Subject        string
	HTMLBody       string
	AttachmentPath string
}

// Sender hands a message to an SMTP-like relay. Failures surface as errors,
// never as a false return with nil error.
type Sender interface {
	Send(ctx context.Context, mail Mail) error
}
