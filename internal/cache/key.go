// Package cache implements the ARC-style page cache (C4): a bounded map of
// (resource_id, page_number) to wrapped pages, replacing entries via a
// four-list adaptive policy generalized from the teacher's single-list LRU
// (internal/storage/pager.go's PageBufferPool, doubly-linked PageFrame list
// plus map) — the teacher itself forward-declares this policy as
// StrategyARC "(future)"; this package is that stub's realization.
package cache

import "fmt"

// Key identifies a cached page by owning resource and page number.
type Key struct {
	ResourceID int64
	PageNumber uint32
}

func (k Key) String() string { return fmt.Sprintf("(%d,%d)", k.ResourceID, k.PageNumber) }
