package shop

import (
	"context"

	"gorm.io/gorm"

	"github.com/kbukum/shopstream/errors"
	"github.com/kbukum/shopstream/pipeline"
)

// rowsPageSize bounds how many rows a streaming read loads per query.
const rowsPageSize = 64

// pageIter streams a table in primary-key order one keyset page at a time.
// A pool connection is held only while a page loads, so downstream stages
// may query the same pool between pages.
type pageIter[T any] struct {
	db     *gorm.DB
	source string
	key    func(T) uint
	size   int

	page []T
	pos  int
	last uint
	done bool
}

func streamRows[T any](db *gorm.DB, source string, key func(T) uint) *pipeline.Pipeline[T] {
	return pagedRows(db, source, key, rowsPageSize)
}

func pagedRows[T any](db *gorm.DB, source string, key func(T) uint, size int) *pipeline.Pipeline[T] {
	return pipeline.FromFunc(func(_ context.Context) pipeline.Iterator[T] {
		return &pageIter[T]{db: db, source: source, key: key, size: size}
	})
}

func (it *pageIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.pos == len(it.page) {
		if it.done {
			return zero, false, nil
		}
		if err := it.load(ctx); err != nil {
			return zero, false, err
		}
		if len(it.page) == 0 {
			return zero, false, nil
		}
	}
	v := it.page[it.pos]
	it.pos++
	return v, true, nil
}

func (it *pageIter[T]) load(ctx context.Context) error {
	var page []T
	err := it.db.WithContext(ctx).
		Where("id > ?", it.last).
		Order("id").
		Limit(it.size).
		Find(&page).Error
	if err != nil {
		return upstream(it.source, err)
	}
	it.page, it.pos = page, 0
	it.done = len(page) < it.size
	if len(page) > 0 {
		it.last = it.key(page[len(page)-1])
	}
	return nil
}

func (it *pageIter[T]) Close() error {
	it.page = nil
	return nil
}

// upstream wraps a store failure. Context termination is reported as is so
// callers can tell a disconnect from a broken store.
func upstream(source string, err error) error {
	if appErr := errors.FromContext(err); appErr != nil {
		return appErr
	}
	return errors.UpstreamFailure(source, err)
}
