package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
)

// LocalStore keeps documents under a directory that is created on demand.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload folder: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Root returns the absolute upload folder.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(key string) (string, string, error) {
	normalized, err := normalizeKey(key)
	if err != nil {
		return "", "", err
	}
	return normalized, filepath.Join(s.root, filepath.FromSlash(normalized)), nil
}

func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader, _ int64, contentType string) (Object, error) {
	normalized, p, err := s.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Object{}, fmt.Errorf("failed to create upload folder: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("put document %q: %w", normalized, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: body})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Object{}, fmt.Errorf("put document %q: %w", normalized, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return Object{}, fmt.Errorf("put document %q: %w", normalized, err)
	}

	info, err := os.Stat(p)
	if err != nil {
		return Object{}, err
	}
	return Object{
		Key:          normalized,
		Size:         n,
		ContentType:  contentType,
		LastModified: info.ModTime(),
		Location:     p,
	}, nil
}

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	_, p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *LocalStore) List(ctx context.Context) ([]Object, error) {
	var out []Object
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == s.root {
				return fs.SkipAll
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || filepath.Base(p)[0] == '.' {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		out = append(out, Object{
			Key:          filepath.ToSlash(rel),
			Size:         info.Size(),
			ContentType:  mime.TypeByExtension(filepath.Ext(p)),
			LastModified: info.ModTime(),
			Location:     p,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	_, p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete document %q: %w", key, err)
	}
	return nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
