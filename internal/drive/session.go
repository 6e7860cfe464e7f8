package drive

import (
	"context"

	"github.com/flemzord/gasbox/internal/behavior"
)

// Session is a Store view bound to one grant. Reads and writes are checked
// against the grant; files created through the session are tracked on it so
// the controller can trash them at revoke.
type Session struct {
	store Store
	grant *behavior.Grant
}

// NewSession binds store to grant.
func NewSession(store Store, grant *behavior.Grant) *Session {
	return &Session{store: store, grant: grant}
}

// FilesByName returns the files named name that the grant may read.
// Files hidden by the sandbox are skipped, not reported as errors.
func (s *Session) FilesByName(ctx context.Context, name string) ([]File, error) {
	files, err := s.store.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	visible := files[:0]
	for _, f := range files {
		if s.grant.CheckRead(f.ID) == nil {
			visible = append(visible, f)
		}
	}
	return visible, nil
}

// Read returns a file the grant may read.
func (s *Session) Read(ctx context.Context, id string) (File, error) {
	if err := s.grant.CheckRead(id); err != nil {
		return File{}, err
	}
	return s.store.Get(ctx, id)
}

// Create stores a new file and records it on the grant.
func (s *Session) Create(ctx context.Context, name, mimeType, content string) (File, error) {
	if err := s.grant.CheckCreate(); err != nil {
		return File{}, err
	}
	f, err := s.store.Create(ctx, File{Name: name, MimeType: mimeType, Content: content})
	if err != nil {
		return File{}, err
	}
	if err := s.grant.TrackCreated(f.ID); err != nil {
		_ = s.store.Delete(ctx, f.ID)
		return File{}, err
	}
	return f, nil
}

// Write replaces the content of a file the grant may write.
func (s *Session) Write(ctx context.Context, id, content string) (File, error) {
	if err := s.grant.CheckWrite(id); err != nil {
		return File{}, err
	}
	return s.store.Update(ctx, id, content)
}
