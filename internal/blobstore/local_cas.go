package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	keyPrefix  = "sha256"
	tmpDirName = "tmp"
	dirMode    = 0o755
)

// LocalCAS keeps document bytes in a content-addressed directory tree.
// Objects are keyed by SHA-256 digest, so two uploads with identical bytes
// share one object and exact duplicates cost no extra blob storage even
// before their group is resolved.
type LocalCAS struct {
	root   string
	tmpDir string
}

// NewLocalCAS opens (creating if needed) a CAS rooted at root.
func NewLocalCAS(root string) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local cas root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	tmpDir := filepath.Join(abs, tmpDirName)
	if err := os.MkdirAll(tmpDir, dirMode); err != nil {
		return nil, err
	}
	return &LocalCAS{root: abs, tmpDir: tmpDir}, nil
}

// Put spools the reader to a temp file while hashing, then commits the
// object under its digest key. Returns the digest, byte count and key.
func (c *LocalCAS) Put(ctx context.Context, r io.Reader) (BlobPutResult, error) {
	var zero BlobPutResult
	if c == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	digest, size, tmpPath, err := c.spool(r)
	if err != nil {
		return zero, err
	}

	key := keyForDigest(digest)
	if err := c.commit(tmpPath, key); err != nil {
		_ = os.Remove(tmpPath)
		return zero, err
	}
	return BlobPutResult{SHA256: digest, SizeBytes: size, BlobKey: key}, nil
}

// Open returns a reader over the object stored under key.
func (c *LocalCAS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if c == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.objectPath(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Delete removes the object stored under key. Missing objects are not an
// error, which makes duplicate deletion safe to retry after a failed
// resolution commit.
func (c *LocalCAS) Delete(ctx context.Context, key string) error {
	if c == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := c.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// spool copies r to a fresh temp file, hashing as it goes.
func (c *LocalCAS) spool(r io.Reader) (digest string, size int64, path string, err error) {
	tmp, err := os.CreateTemp(c.tmpDir, "put-*")
	if err != nil {
		return "", 0, "", err
	}
	path = tmp.Name()

	h := sha256.New()
	size, err = io.Copy(io.MultiWriter(tmp, h), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, "", err
	}
	return hex.EncodeToString(h.Sum(nil)), size, path, nil
}

// commit moves a spooled file into its keyed location. A concurrent Put of
// the same bytes may win the rename race; either outcome leaves identical
// content in place, so the loser just drops its temp file.
func (c *LocalCAS) commit(tmpPath, key string) error {
	dst := filepath.Join(c.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), dirMode); err != nil {
		return err
	}

	if _, err := os.Stat(dst); err == nil {
		return os.Remove(tmpPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		if _, statErr := os.Stat(dst); statErr == nil {
			return os.Remove(tmpPath)
		}
		return err
	}
	return nil
}

// keyForDigest fans objects out over two directory levels to keep any one
// directory small.
func keyForDigest(digest string) string {
	return keyPrefix + "/" + digest[0:2] + "/" + digest[2:4] + "/" + digest
}

// objectPath resolves a key to an absolute path under the CAS root,
// rejecting anything that would escape it.
func (c *LocalCAS) objectPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("blob key must be relative")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key")
	}
	return filepath.Join(c.root, clean), nil
}
