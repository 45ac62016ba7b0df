package cache

import "fmt"

// DuplicateError is returned by AddPage when an entry with the same key is
// already resident.
type DuplicateError struct{ Key Key }

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("cache: duplicate entry for key %s", e.Key)
}

// PinnedError is returned by AddPage when every candidate victim is pinned.
type PinnedError struct{ Key Key }

func (e *PinnedError) Error() string {
	return fmt.Sprintf("cache: no unpinned victim available while admitting %s", e.Key)
}
