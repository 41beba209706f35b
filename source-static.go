package blockstore

import (
	"io"
	"strings"
)

// StaticSource holds a fixed set of lines in memory. It's used for rules given
// inline in the configuration.
type StaticSource struct {
	id    string
	rules []string
}

var _ Source = &StaticSource{}

func NewStaticSource(id string, rules []string) *StaticSource {
	return &StaticSource{id, rules}
}

func (l *StaticSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(strings.Join(l.rules, "\n"))), nil
}

func (l *StaticSource) String() string {
	return l.id
}
