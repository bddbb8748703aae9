package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"dublett/internal/fingerprint"
	"dublett/internal/models"
	"dublett/internal/store"
)

// attachRetries bounds how often a fresh upload retries grouping when it
// loses the tenant or group lock to a concurrent upload.
const (
	attachRetries = 3
	attachBackoff = 100 * time.Millisecond
)

// IngestRequest carries one uploaded document into the engine.
type IngestRequest struct {
	TenantID   string
	Name       string
	UploaderID string
	Body       io.Reader
}

// IngestResult is the persisted file and, when duplicate detection matched
// it, the group it joined. GroupID is empty for a unique file.
type IngestResult struct {
	File    *models.File `json:"file"`
	GroupID string       `json:"group_id,omitempty"`
}

// Ingest persists an upload and runs duplicate detection on it. The bytes
// are fingerprinted while they stream into blob storage, so the payload is
// read exactly once. The file record survives even when grouping loses out
// to concurrent uploads; a later matching upload will sweep it in.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	tenantID := strings.TrimSpace(req.TenantID)
	name := strings.TrimSpace(req.Name)
	if tenantID == "" {
		return nil, ingestionFailure(name, errors.New("tenant id is required"))
	}
	if name == "" {
		return nil, ingestionFailure(name, errors.New("file name is required"))
	}
	if req.Body == nil {
		return nil, ingestionFailure(name, errors.New("no payload"))
	}

	hasher := fingerprint.NewHasher()
	put, err := e.blobs.Put(ctx, io.TeeReader(req.Body, hasher))
	if err != nil {
		return nil, ingestionFailure(name, err)
	}
	fp := hasher.Fingerprint()

	id, err := store.GenerateFileID(e.store.FileExists)
	if err != nil {
		return nil, err
	}

	file := &models.File{
		ID:          id,
		TenantID:    tenantID,
		Name:        name,
		ContentHash: fp.SHA256,
		SimHash:     fp.SimHash,
		SizeBytes:   put.SizeBytes,
		UploaderID:  strings.TrimSpace(req.UploaderID),
		BlobKey:     put.BlobKey,
		UploadedAt:  time.Now().UTC(),
	}
	if err := e.store.CreateFile(ctx, file); err != nil {
		return nil, err
	}

	e.logger.Info("file ingested",
		"file_id", file.ID,
		"tenant_id", file.TenantID,
		"name", file.Name,
		"size_bytes", file.SizeBytes,
		"blob_key", file.BlobKey,
	)

	groupID, err := e.attachWithRetry(ctx, file.ID)
	if err != nil {
		return nil, err
	}
	if groupID != "" {
		file.GroupID = groupID
	}

	return &IngestResult{File: file, GroupID: groupID}, nil
}

// attachWithRetry retries lock contention a few times with backoff, then
// gives up and leaves the file ungrouped rather than failing the upload.
func (e *Engine) attachWithRetry(ctx context.Context, fileID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < attachRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * attachBackoff):
			}
		}

		groupID, err := e.Attach(ctx, fileID)
		if err == nil {
			return groupID, nil
		}
		if !errors.Is(err, ErrGroupContention) {
			return "", err
		}
		lastErr = err
	}

	e.emitError("attach", lastErr, "file_id", fileID, "attempts", attachRetries)
	return "", nil
}
