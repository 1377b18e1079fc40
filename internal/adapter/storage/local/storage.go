package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Store serves attachments from a base directory on the local filesystem.
type Store struct {
	basePath string
	logger   *zap.Logger
}

func NewStore(basePath string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{
		basePath: basePath,
		logger:   logger.Named("storage.local"),
	}, nil
}

func (s *Store) Exists(ctx context.Context, name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", name, err)
	}
	return data, nil
}

// Path resolves a stored name to an absolute path, refusing anything that
// escapes the base directory.
func (s *Store) Path(name string) (string, error) {
	cleaned := filepath.Join(s.basePath, strings.TrimLeft(name, "/"))
	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", err
	}
	base, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	if abs != base && !strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return "", fmt.Errorf("file path %q escapes storage root", name)
	}
	return abs, nil
}
