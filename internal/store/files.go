package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"dublett/internal/models"
)

// FileExists checks whether a file record exists by id.
func (s *Store) FileExists(id string) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM files WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateFile inserts a file record. Identity fields are immutable afterwards.
func (s *Store) CreateFile(ctx context.Context, file *models.File) error {
	if file == nil {
		return fmt.Errorf("file is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (
			id, tenant_id, name, content_hash, simhash, size_bytes, uploader_id, blob_key, group_id, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		file.ID,
		file.TenantID,
		file.Name,
		file.ContentHash,
		int64(file.SimHash),
		file.SizeBytes,
		file.UploaderID,
		nullIfEmpty(file.BlobKey),
		nullIfEmpty(file.GroupID),
		formatTime(file.UploadedAt),
	)
	return err
}

// GetFile returns a file record by id, or nil when absent.
func (s *Store) GetFile(ctx context.Context, id string) (*models.File, error) {
	row := s.db.QueryRowContext(ctx, fileSelect+" WHERE id = ?", id)
	return scanFile(row)
}

// ListTenantFiles returns candidate files for comparison within a tenant,
// excluding the given file id. Oldest uploads come first so earlier groups
// win match ties deterministically. A limit of 0 returns all files.
func (s *Store) ListTenantFiles(ctx context.Context, tenantID, excludeID string, limit int) ([]models.File, error) {
	args := []any{tenantID}
	query := fileSelect + " WHERE tenant_id = ?"
	if excludeID != "" {
		query += " AND id != ?"
		args = append(args, excludeID)
	}
	query += " ORDER BY uploaded_at ASC, id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}

// ListGroupFiles returns the member files of a group ordered by upload time.
func (s *Store) ListGroupFiles(ctx context.Context, groupID string) ([]models.File, error) {
	rows, err := s.db.QueryContext(ctx, fileSelect+`
		WHERE id IN (SELECT file_id FROM group_members WHERE group_id = ?)
		ORDER BY uploaded_at ASC, id ASC
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}

// BlobKeyInUse reports whether any file outside excludeIDs still references
// the blob key. The CAS shares one object between exact duplicates, so a
// key must not be deleted while a surviving file points at it.
func (s *Store) BlobKeyInUse(ctx context.Context, key string, excludeIDs []string) (bool, error) {
	if key == "" {
		return false, nil
	}

	args := []any{key}
	query := "SELECT 1 FROM files WHERE blob_key = ?"
	if len(excludeIDs) > 0 {
		query += fmt.Sprintf(" AND id NOT IN (%s)", placeholders(len(excludeIDs)))
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	query += " LIMIT 1"

	var exists int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const fileSelect = "SELECT id, tenant_id, name, content_hash, simhash, size_bytes, uploader_id, blob_key, group_id, uploaded_at FROM files"

func scanFile(scanner interface {
	Scan(dest ...any) error
}) (*models.File, error) {
	var file models.File
	var simhash int64
	var blobKey, groupID sql.NullString
	var uploadedAt string

	if err := scanner.Scan(
		&file.ID,
		&file.TenantID,
		&file.Name,
		&file.ContentHash,
		&simhash,
		&file.SizeBytes,
		&file.UploaderID,
		&blobKey,
		&groupID,
		&uploadedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	file.SimHash = uint64(simhash)
	file.BlobKey = blobKey.String
	file.GroupID = groupID.String

	parsed, err := parseTime(uploadedAt)
	if err != nil {
		return nil, err
	}
	file.UploadedAt = parsed

	return &file, nil
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimRight(strings.Repeat("?,", count), ",")
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return formatTime(*value)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
