package blockstore

import (
	"fmt"
	"io"
)

// Source is a line-oriented text resource with one domain per line. Blank
// lines and surrounding whitespace are ignored, there is no comment syntax.
type Source interface {
	// Open returns a reader over the lines of the source. An error here
	// means the source is unavailable.
	Open() (io.ReadCloser, error)

	fmt.Stringer
}
