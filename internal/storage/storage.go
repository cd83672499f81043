// Package storage keeps uploaded files (gallery photos) and hands back the
// public URL each one is served from.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"wedding-manager/internal/apperr"
)

type ObjectStore interface {
	// Put stores r under objectPath and returns its public URL.
	Put(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error)
	// List returns the URLs of every object under prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]string, error)
	Open(ctx context.Context, objectPath string) (io.ReadCloser, error)
}

// URLBuilder maps object paths to {base}/api/files/{path}.
type URLBuilder struct {
	BaseURL string
}

func (u URLBuilder) URL(objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(u.BaseURL, "/") + "/api/files/" + strings.Join(segments, "/")
}

// CleanPath normalises an object path and rejects anything that would climb
// out of the store.
func CleanPath(objectPath string) (string, error) {
	slashed := strings.ReplaceAll(objectPath, "\\", "/")
	for _, segment := range strings.Split(slashed, "/") {
		if segment == ".." {
			return "", apperr.Validation("path", fmt.Sprintf("%q is not allowed", objectPath))
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+slashed), "/")
	if cleaned == "" {
		return "", apperr.Validation("path", "is empty")
	}
	return cleaned, nil
}
