package models

import "time"

// File represents one uploaded document artifact. Content identity fields
// (hash, simhash, size) are written once at ingestion and never mutated;
// the dedup engine only reassigns GroupID.
type File struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	ContentHash string    `json:"content_hash"`
	SimHash     uint64    `json:"simhash"`
	SizeBytes   int64     `json:"size_bytes"`
	UploaderID  string    `json:"uploader_id"`
	BlobKey     string    `json:"blob_key,omitempty"`
	GroupID     string    `json:"group_id,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
