// Package docstore keeps the raw files uploaded for ingestion, either in a
// local folder or in an S3-compatible bucket.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Object describes a stored file.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
	// Location is a file path or an s3:// URL.
	Location string `json:"location"`
}

type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context) ([]Object, error)
	Delete(ctx context.Context, key string) error
}

// normalizeKey cleans key and rejects anything escaping the store root.
func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(strings.TrimPrefix(strings.ReplaceAll(key, "\\", "/"), "/"))
	if key == "" {
		return "", fmt.Errorf("document key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/../") {
		return "", fmt.Errorf("invalid document key: %q", key)
	}
	return cleaned, nil
}

func cleanPrefix(prefix string) string {
	prefix = strings.TrimSpace(strings.TrimPrefix(prefix, "/"))
	if prefix == "" {
		return ""
	}
	prefix = path.Clean(prefix)
	if prefix == "." {
		return ""
	}
	return prefix
}
