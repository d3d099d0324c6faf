// Package local implements storage.Storage on the local filesystem.
package local

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderLocal, func(cfg storage.Config, _ *logger.Logger) (storage.Storage, error) {
		return NewStorage(cfg.BasePath, WithMaxFileSize(cfg.MaxFileSize))
	})
}

// ErrOutsideRoot is returned for paths that resolve outside the base directory.
var ErrOutsideRoot = stderrors.New("storage: path escapes base directory")

// ErrTooLarge is returned when an upload exceeds the size limit.
var ErrTooLarge = stderrors.New("storage: file exceeds max size")

// Option configures a Storage.
type Option func(*Storage)

// WithMaxFileSize caps uploads. Zero or negative disables the check.
func WithMaxFileSize(n int64) Option {
	return func(s *Storage) { s.maxFileSize = n }
}

// Storage implements storage.Storage using the local filesystem.
type Storage struct {
	basePath    string
	maxFileSize int64
}

// NewStorage creates a local filesystem storage rooted at basePath.
func NewStorage(basePath string, opts ...Option) (*Storage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create base directory: %w", err)
	}
	s := &Storage{basePath: abs}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BasePath returns the absolute root directory.
func (s *Storage) BasePath() string { return s.basePath }

func (s *Storage) resolve(path string) (string, error) {
	full := filepath.Join(s.basePath, filepath.Clean("/"+path))
	if full != s.basePath && !strings.HasPrefix(full, s.basePath+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

// Upload writes data from reader to a local file.
func (s *Storage) Upload(ctx context.Context, path string, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("storage: create directory: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("storage: create file: %w", err)
	}
	defer f.Close() //nolint:errcheck // write errors surface from io.Copy

	src := reader
	if s.maxFileSize > 0 {
		src = io.LimitReader(reader, s.maxFileSize+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return fmt.Errorf("storage: write file: %w", err)
	}
	if s.maxFileSize > 0 && n > s.maxFileSize {
		_ = os.Remove(fullPath)
		return ErrTooLarge
	}
	return nil
}

// Download returns a reader for the local file at the given path.
func (s *Storage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, storage.NotFound(path).WithCause(err)
		}
		return nil, fmt.Errorf("storage: open file: %w", err)
	}
	return f, nil
}

// Delete removes a local file. Returns nil if the file does not exist.
func (s *Storage) Delete(_ context.Context, path string) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}

// Exists checks whether a local file exists.
func (s *Storage) Exists(_ context.Context, path string) (bool, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: stat file: %w", err)
	}
	return true, nil
}

// List returns metadata for all files whose relative path starts with prefix.
func (s *Storage) List(_ context.Context, prefix string) ([]storage.FileInfo, error) {
	files := []storage.FileInfo{}
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		if !strings.HasPrefix(relPath, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		ct := mime.TypeByExtension(filepath.Ext(path))
		if ct == "" {
			ct = "application/octet-stream"
		}
		files = append(files, storage.FileInfo{
			Path:         relPath,
			Size:         info.Size(),
			LastModified: info.ModTime(),
			ContentType:  ct,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

var _ storage.Storage = (*Storage)(nil)
