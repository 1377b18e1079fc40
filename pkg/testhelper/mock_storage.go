package testhelper

import (
	"context"
	"fmt"
)

// MockFileStore is an in-memory implementation of storage.FileStore for testing
type MockFileStore struct {
	Files map[string][]byte
}

// NewMockFileStore creates an empty in-memory file store
func NewMockFileStore() *MockFileStore {
	return &MockFileStore{Files: make(map[string][]byte)}
}

// Exists mocks the Exists method
func (m *MockFileStore) Exists(ctx context.Context, name string) bool {
	_, ok := m.Files[name]
	return ok
}

// Read mocks the Read method
func (m *MockFileStore) Read(ctx context.Context, name string) ([]byte, error) {
	data, ok := m.Files[name]
	if !ok {
		return nil, fmt.Errorf("mock file store: %s not found", name)
	}
	return data, nil
}

// Path mocks the Path method
func (m *MockFileStore) Path(name string) (string, error) {
	if _, ok := m.Files[name]; !ok {
		return "", fmt.Errorf("mock file store: %s not found", name)
	}
	return "/tmp/mock-files/" + name, nil
}
