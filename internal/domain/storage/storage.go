package storage

import "context"

// FileStore is the attachment storage collaborator.
type FileStore interface {
	// Exists reports whether a stored file resolves.
	Exists(ctx context.Context, name string) bool

	// Read returns the file contents.
	Read(ctx context.Context, name string) ([]byte, error)

	// Path resolves the absolute on-disk path for a stored file, for
	// transports that attach by path.
	Path(name string) (string, error)
}
