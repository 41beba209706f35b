package blockstore

import (
	"fmt"
)

// SourceError is returned when a blocklist source can't be opened or read.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("blocklist source '%s' unavailable: %s", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
