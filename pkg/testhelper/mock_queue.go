package testhelper

import (
	"context"
	"fmt"

	"github.com/mailflow/mailflow/internal/queue"
)

// MockPublisher is a mock implementation of queue.Publisher for testing
type MockPublisher struct {
	Published  []*queue.Message
	ShouldFail bool
}

// Publish mocks the Publish method
func (m *MockPublisher) Publish(ctx context.Context, msg *queue.Message) error {
	if m.ShouldFail {
		return fmt.Errorf("mock publisher: publish failed")
	}
	m.Published = append(m.Published, msg)
	return nil
}
