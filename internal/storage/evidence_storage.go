package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

// Accepted evidence types: images and common documents.
var allowedEvidenceTypes = map[string]bool{
	"jpg": true, "png": true, "gif": true, "webp": true,
	"pdf": true, "zip": true, "mp4": true,
}

// EvidenceStorage keeps dispute evidence files on disk, one directory per
// dispute. The content type is sniffed from the file's magic bytes, not
// taken from the client.
type EvidenceStorage struct {
	rootPath       string
	maxUploadBytes int64
}

func NewEvidenceStorage(rootPath string, maxUploadMB int64) (*EvidenceStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", rootPath, err)
	}
	return &EvidenceStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save stores an evidence file and returns its relative path, detected type
// and size.
func (s *EvidenceStorage) Save(ctx context.Context, disputeID uuid.UUID, originalName string, r io.Reader) (string, string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", "", 0, err
	}

	head := make([]byte, 261)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", "", 0, fmt.Errorf("storage: cannot read upload: %w", err)
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || !allowedEvidenceTypes[kind.Extension] {
		return "", "", 0, fmt.Errorf("storage: unsupported evidence file type")
	}

	safeName := sanitizeFilename(originalName)
	fileName := fmt.Sprintf("%d_%s.%s", time.Now().UnixNano(), strings.TrimSuffix(safeName, filepath.Ext(safeName)), kind.Extension)

	disputeDir := filepath.Join(s.rootPath, disputeID.String())
	if err := os.MkdirAll(disputeDir, 0o755); err != nil {
		return "", "", 0, fmt.Errorf("storage: cannot create dispute directory: %w", err)
	}

	targetPath := filepath.Join(disputeDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", "", 0, fmt.Errorf("storage: cannot create file: %w", err)
	}
	defer f.Close()

	limited := io.LimitedReader{R: io.MultiReader(bytes.NewReader(head), r), N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", "", 0, fmt.Errorf("storage: write failed: %w", err)
	}
	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", "", 0, fmt.Errorf("storage: file exceeds the %d byte limit", s.maxUploadBytes)
	}

	if err := f.Close(); err != nil {
		return "", "", 0, fmt.Errorf("storage: close failed: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", "", 0, fmt.Errorf("storage: rename failed: %w", err)
	}

	relative := filepath.Join(disputeID.String(), fileName)
	return relative, kind.MIME.Value, written, nil
}

// Delete removes an evidence file. Missing files are not an error.
func (s *EvidenceStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := filepath.Join(s.rootPath, relativePath)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: cannot delete file: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "evidence"
	}
	return name
}
