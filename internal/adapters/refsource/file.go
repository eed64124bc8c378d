// Package refsource provides the places a reference dataset can be read from.
package refsource

import (
	"context"
	"fmt"
	"io"
	"os"
)

// File reads the dataset from disk.
type File struct {
	Path string
}

// NewFile returns a file source for path.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Open opens the file. A missing file wraps ErrSourceUnavailable.
func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return fh, nil
}

func (f *File) String() string { return "file:" + f.Path }
