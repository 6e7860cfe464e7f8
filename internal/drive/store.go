// Package drive provides the external resources that tool handlers operate
// on: files addressed by opaque id. A Session binds a Store to a behavior
// grant so every read and write goes through the grant's gate checks.
package drive

import (
	"context"
	"errors"
	"time"
)

// ErrFileNotFound indicates the requested file does not exist.
var ErrFileNotFound = errors.New("drive: file not found")

// File is a single stored resource.
type File struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	MimeType  string    `json:"mime_type,omitempty" yaml:"mime_type"`
	Content   string    `json:"content,omitempty" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Store persists files. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the file with the given id or ErrFileNotFound.
	Get(ctx context.Context, id string) (File, error)

	// FindByName returns all files whose name equals name, in creation order.
	FindByName(ctx context.Context, name string) ([]File, error)

	// Create stores a new file. An empty ID is assigned by the store.
	Create(ctx context.Context, f File) (File, error)

	// Update replaces the content of an existing file.
	Update(ctx context.Context, id, content string) (File, error)

	// Delete removes a file. Deleting a missing file is not an error.
	Delete(ctx context.Context, id string) error

	// Len returns the number of stored files.
	Len(ctx context.Context) (int, error)
}

// Trasher returns a function suitable for behavior.TrashFunc that deletes
// every id from store, continuing past failures and joining them.
func Trasher(store Store) func(ctx context.Context, ids []string) error {
	return func(ctx context.Context, ids []string) error {
		var errs []error
		for _, id := range ids {
			if err := store.Delete(ctx, id); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
