// Package delivery drains the delivery area: every pending package is sent to
// the remote destination and then removed locally, whether or not the
// transfer succeeded.
package delivery

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Item is one pending package.
type Item struct {
	Name string
	Path string
	Size int64
}

// Queue enumerates and removes pending items.
type Queue interface {
	Pending(ctx context.Context) ([]Item, error)
	Remove(item Item) error
}

// DirQueue is a Queue backed by the regular files of one directory. Every
// regular file is pending whatever produced it. Entries are returned in
// directory order with no further ordering guarantee.
type DirQueue struct {
	dir string
}

// NewDirQueue returns a queue over dir. A missing dir is an empty queue.
func NewDirQueue(dir string) *DirQueue { return &DirQueue{dir: dir} }

// Dir returns the queue directory.
func (q *DirQueue) Dir() string { return q.dir }

func (q *DirQueue) Pending(ctx context.Context) ([]Item, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		items = append(items, Item{Name: e.Name(), Path: filepath.Join(q.dir, e.Name()), Size: size})
	}
	return items, nil
}

func (q *DirQueue) Remove(item Item) error {
	if err := os.Remove(item.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
