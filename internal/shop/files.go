package shop

import (
	"context"
	stderrors "errors"
	"io"

	"github.com/kbukum/shopstream/errors"
	"github.com/kbukum/shopstream/pipeline"
	"github.com/kbukum/shopstream/storage"
)

// DefaultChunkSize is the read size of FileSource.
const DefaultChunkSize = 1024

// FileSource streams stored files as byte chunks.
type FileSource struct {
	store     storage.Storage
	chunkSize int
}

// NewFileSource creates a source reading chunkSize bytes at a time.
func NewFileSource(store storage.Storage, chunkSize int) *FileSource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &FileSource{store: store, chunkSize: chunkSize}
}

// Open streams the file at path. Every chunk but the last is full size.
// The file is opened on the first pull and closed with the iterator.
func (f *FileSource) Open(path string) *pipeline.Pipeline[[]byte] {
	return pipeline.FromFunc(func(_ context.Context) pipeline.Iterator[[]byte] {
		return &chunkIter{store: f.store, path: path, size: f.chunkSize}
	})
}

type chunkIter struct {
	store storage.Storage
	path  string
	size  int
	r     io.ReadCloser
	eof   bool
}

func (it *chunkIter) Next(ctx context.Context) ([]byte, bool, error) {
	if it.eof {
		return nil, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if it.r == nil {
		r, err := it.store.Download(ctx, it.path)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeNotFound) {
				return nil, false, err
			}
			return nil, false, upstream("file "+it.path, err)
		}
		it.r = r
	}

	buf := make([]byte, it.size)
	n, err := io.ReadFull(it.r, buf)
	switch {
	case err == nil:
		return buf, true, nil
	case stderrors.Is(err, io.ErrUnexpectedEOF):
		it.eof = true
		return buf[:n], true, nil
	case stderrors.Is(err, io.EOF):
		it.eof = true
		return nil, false, nil
	default:
		return nil, false, upstream("file "+it.path, err)
	}
}

func (it *chunkIter) Close() error {
	if it.r == nil {
		return nil
	}
	return it.r.Close()
}
