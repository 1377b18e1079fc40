package testhelper

import (
	"context"
	"fmt"

	"github.com/mailflow/mailflow/internal/domain/mailer"
)

// MockSender is a mock implementation of mailer.Sender for testing
type MockSender struct {
	SendCalls  []mailer.Mail
	ShouldFail bool
	FailErr    error
}

// Send mocks the Send method
func (m *MockSender) Send(ctx context.Context, mail mailer.Mail) error {
	if m.ShouldFail {
		if m.FailErr != nil {
			return m.FailErr
		}
		return fmt.Errorf("mock sender: send failed")
	}
	m.SendCalls = append(m.SendCalls, mail)
	return nil
}
