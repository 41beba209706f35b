package blockstore

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// FileSource reads blocklist entries from a file on the local machine.
type FileSource struct {
	filename string
}

var _ Source = &FileSource{}

func NewFileSource(filename string) *FileSource {
	return &FileSource{filename}
}

func (l *FileSource) Open() (io.ReadCloser, error) {
	f, err := os.Open(l.filename)
	if err != nil {
		return nil, errors.Wrap(err, "open blocklist file")
	}
	return f, nil
}

func (l *FileSource) String() string {
	return l.filename
}
