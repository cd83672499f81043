package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"wedding-manager/internal/apperr"
)

// LocalStore keeps objects as files below Root.
type LocalStore struct {
	Root string
	URLs URLBuilder
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", root, err)
	}
	return &LocalStore{Root: root, URLs: URLBuilder{BaseURL: baseURL}}, nil
}

func (s *LocalStore) Put(ctx context.Context, objectPath string, r io.Reader, _ string) (string, error) {
	clean, err := CleanPath(objectPath)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := filepath.Join(s.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", apperr.Backend("put object", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", apperr.Backend("put object", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", apperr.Backend("put object", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", apperr.Backend("put object", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", apperr.Backend("put object", err)
	}
	return s.URLs.URL(clean), nil
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	clean, err := CleanPath(prefix)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(s.Root, filepath.FromSlash(clean))
	var paths []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, apperr.Backend("list objects", err)
	}

	sort.Strings(paths)
	urls := make([]string, len(paths))
	for i, p := range paths {
		urls[i] = s.URLs.URL(p)
	}
	return urls, nil
}

func (s *LocalStore) Open(_ context.Context, objectPath string) (io.ReadCloser, error) {
	clean, err := CleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.Root, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("file", clean)
	}
	if err != nil {
		return nil, apperr.Backend("open object", err)
	}
	return f, nil
}
