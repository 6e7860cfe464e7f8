package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/gasbox/internal/drive"
	"github.com/google/uuid"
)

// Store is a drive.Store backed by a single SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func (s *Store) timeNow() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get implements drive.Store.
func (s *Store) Get(ctx context.Context, id string) (drive.File, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, mime_type, content, created_at, updated_at
		FROM files WHERE id = ?`, id)

	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return drive.File{}, fmt.Errorf("%w: %s", drive.ErrFileNotFound, id)
	}
	if err != nil {
		return drive.File{}, fmt.Errorf("sqlite: get file: %w", err)
	}
	return f, nil
}

// FindByName implements drive.Store.
func (s *Store) FindByName(ctx context.Context, name string) ([]drive.File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, mime_type, content, created_at, updated_at
		FROM files WHERE name = ?
		ORDER BY rowid`, name)
	if err != nil {
		return nil, fmt.Errorf("sqlite: find by name: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []drive.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Create implements drive.Store.
func (s *Store) Create(ctx context.Context, f drive.File) (drive.File, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := s.timeNow()
	f.CreatedAt, f.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (id, name, mime_type, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.MimeType, f.Content,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return drive.File{}, fmt.Errorf("sqlite: create file: %w", err)
	}
	return f, nil
}

// Update implements drive.Store.
func (s *Store) Update(ctx context.Context, id, content string) (drive.File, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET content = ?, updated_at = ? WHERE id = ?`,
		content, s.timeNow().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return drive.File{}, fmt.Errorf("sqlite: update file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return drive.File{}, fmt.Errorf("%w: %s", drive.ErrFileNotFound, id)
	}
	return s.Get(ctx, id)
}

// Delete implements drive.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete file: %w", err)
	}
	return nil
}

// Len implements drive.Store.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count files: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(sc scanner) (drive.File, error) {
	var (
		f                drive.File
		created, updated string
	)
	if err := sc.Scan(&f.ID, &f.Name, &f.MimeType, &f.Content, &created, &updated); err != nil {
		return drive.File{}, err
	}
	f.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	f.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return f, nil
}
