package cache

import (
	"container/list"
	"sync"

	"github.com/royd1990/corestore/internal/page"
)

// residency identifies which of the four ARC lists an entry or ghost
// currently occupies.
type residency uint8

const (
	inT1 residency = iota
	inT2
	inB1
	inB2
)

type entry struct {
	key        Key
	buffer     []byte
	wrapper    *page.Wrapper
	pinCount   int
	freshCredit bool // one-shot anti-prefetch credit, consumed on the next access
	list       residency
	elem       *list.Element // element in t1/t2/b1/b2 holding this key
}

// EvictedEntry describes what AddPage displaced to make room for a new
// admission, or a blank slot while the cache has not yet reached capacity.
type EvictedEntry struct {
	Buffer     []byte
	Wrapper    *page.Wrapper // nil for a blank slot or an already-expired victim
	ResourceID int64         // -1 for a blank slot
	PageNumber uint32
}

// Cache is a four-list ARC-style page cache bounded at capacity resident
// entries, each buffer sized pageSize bytes.
type Cache struct {
	name     string
	capacity int
	pageSize int

	mu sync.Mutex
	p  int // adaptation target for |T1|

	t1, t2, b1, b2 *list.List
	entries        map[Key]*entry         // resident entries (T1 or T2)
	ghosts         map[Key]*list.Element  // ghost keys (B1 or B2), element lives in b1/b2
	ghostList      map[Key]*list.List     // which of b1/b2 each ghost key's element lives in

	blankSlotsRemaining int
}

// New builds an empty cache. name labels this instance's metrics series.
func New(name string, capacity, pageSize int) *Cache {
	return &Cache{
		name:                name,
		capacity:            capacity,
		pageSize:            pageSize,
		t1:                  list.New(),
		t2:                  list.New(),
		b1:                  list.New(),
		b2:                  list.New(),
		entries:             make(map[Key]*entry),
		ghosts:              make(map[Key]*list.Element),
		ghostList:           make(map[Key]*list.List),
		blankSlotsRemaining: capacity,
	}
}

func (c *Cache) residentCount() int { return c.t1.Len() + c.t2.Len() }

// AddPage admits wrapper/buf under key (resourceID, wrapper.PageNumber()).
func (c *Cache) AddPage(wrapper *page.Wrapper, buf []byte, resourceID int64) (EvictedEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key{ResourceID: resourceID, PageNumber: wrapper.PageNumber()}
	if _, present := c.entries[key]; present {
		return EvictedEntry{}, &DuplicateError{Key: key}
	}

	if c.blankSlotsRemaining > 0 {
		c.blankSlotsRemaining--
		c.admitCold(key, buf, wrapper)
		cacheMisses.WithLabelValues(c.name).Inc()
		cacheResident.WithLabelValues(c.name).Set(float64(c.residentCount()))
		return EvictedEntry{
			Buffer:     make([]byte, c.pageSize),
			ResourceID: -1,
		}, nil
	}

	if elem, inB1 := c.ghostElem(key, c.b1); inB1 {
		b1n, b2n := c.b1.Len(), c.b2.Len()
		delta := 1
		if b1n > 0 && b2n/b1n > delta {
			delta = b2n / b1n
		}
		c.p = minInt(c.capacity, c.p+delta)
		c.b1.Remove(elem)
		delete(c.ghosts, key)
		delete(c.ghostList, key)
		evicted, err := c.replace(key, false)
		if err != nil {
			return EvictedEntry{}, err
		}
		c.admitFrequent(key, buf, wrapper)
		cacheMisses.WithLabelValues(c.name).Inc()
		cacheResident.WithLabelValues(c.name).Set(float64(c.residentCount()))
		return evicted, nil
	}

	if elem, inB2 := c.ghostElem(key, c.b2); inB2 {
		b1n, b2n := c.b1.Len(), c.b2.Len()
		delta := 1
		if b2n > 0 && b1n/b2n > delta {
			delta = b1n / b2n
		}
		c.p = maxInt(0, c.p-delta)
		c.b2.Remove(elem)
		delete(c.ghosts, key)
		delete(c.ghostList, key)
		evicted, err := c.replace(key, true)
		if err != nil {
			return EvictedEntry{}, err
		}
		c.admitFrequent(key, buf, wrapper)
		cacheMisses.WithLabelValues(c.name).Inc()
		cacheResident.WithLabelValues(c.name).Set(float64(c.residentCount()))
		return evicted, nil
	}

	// Pure miss: overflow bookkeeping per the classic ARC cold-miss rules,
	// then evict one resident entry to make room.
	if c.t1.Len()+c.b1.Len() == c.capacity {
		if c.t1.Len() < c.capacity {
			c.dropGhostLRU(c.b1)
		}
	} else if c.t1.Len()+c.t2.Len()+c.b1.Len()+c.b2.Len() >= 2*c.capacity {
		c.dropGhostLRU(c.b2)
	}
	evicted, err := c.replace(key, false)
	if err != nil {
		return EvictedEntry{}, err
	}
	c.admitCold(key, buf, wrapper)
	cacheMisses.WithLabelValues(c.name).Inc()
	cacheResident.WithLabelValues(c.name).Set(float64(c.residentCount()))
	return evicted, nil
}

func (c *Cache) ghostElem(key Key, l *list.List) (*list.Element, bool) {
	elem, ok := c.ghosts[key]
	if !ok || elem.Value.(Key) != key {
		return nil, false
	}
	// confirm membership in the requested list by walking is wasteful; we
	// instead tag ghosts by which list they're in via a parallel map.
	return elem, c.ghostList[key] == l
}

func (c *Cache) admitCold(key Key, buf []byte, w *page.Wrapper) {
	elem := c.t1.PushFront(key)
	c.entries[key] = &entry{key: key, buffer: buf, wrapper: w, list: inT1, elem: elem, freshCredit: true}
}

func (c *Cache) admitFrequent(key Key, buf []byte, w *page.Wrapper) {
	elem := c.t2.PushFront(key)
	c.entries[key] = &entry{key: key, buffer: buf, wrapper: w, list: inT2, elem: elem}
}

func (c *Cache) dropGhostLRU(l *list.List) {
	back := l.Back()
	if back == nil {
		return
	}
	key := back.Value.(Key)
	l.Remove(back)
	delete(c.ghosts, key)
	delete(c.ghostList, key)
}

// replace evicts one unpinned resident entry, preferring any entry already
// marked expired by ExpelAllForResource, then following the ARC T1-vs-T2
// choice governed by p, skipping pinned entries and falling back to the
// other list if the preferred one has no eligible victim. fromB2 records
// whether the admission triggering this replacement was a B2 ghost hit,
// which tips the T1-vs-T2 choice when |T1| == p exactly.
func (c *Cache) replace(incoming Key, fromB2 bool) (EvictedEntry, error) {
	if victim := c.findExpiredVictim(); victim != nil {
		return c.evict(victim), nil
	}

	preferT1 := c.t1.Len() > 0 && (c.t1.Len() > c.p || (fromB2 && c.t1.Len() == c.p))
	order := []*list.List{c.t2, c.t1}
	if preferT1 {
		order = []*list.List{c.t1, c.t2}
	}
	for _, l := range order {
		if v := c.findUnpinnedLRU(l); v != nil {
			return c.evict(v), nil
		}
	}
	return EvictedEntry{}, &PinnedError{Key: incoming}
}

func (c *Cache) findExpiredVictim() *entry {
	for _, l := range []*list.List{c.t1, c.t2} {
		for e := l.Back(); e != nil; e = e.Prev() {
			key := e.Value.(Key)
			ent := c.entries[key]
			if ent.pinCount == 0 && ent.wrapper.IsExpired() {
				return ent
			}
		}
	}
	return nil
}

func (c *Cache) findUnpinnedLRU(l *list.List) *entry {
	for e := l.Back(); e != nil; e = e.Prev() {
		key := e.Value.(Key)
		ent := c.entries[key]
		if ent.pinCount == 0 {
			return ent
		}
	}
	return nil
}

func (c *Cache) evict(ent *entry) EvictedEntry {
	var srcList *list.List
	var ghostList *list.List
	if ent.list == inT1 {
		srcList = c.t1
		ghostList = c.b1
	} else {
		srcList = c.t2
		ghostList = c.b2
	}
	srcList.Remove(ent.elem)
	delete(c.entries, ent.key)
	cacheEvictions.WithLabelValues(c.name).Inc()

	var outWrapper *page.Wrapper
	if !ent.wrapper.IsExpired() {
		outWrapper = ent.wrapper
		ghostElem := ghostList.PushFront(ent.key)
		c.ghosts[ent.key] = ghostElem
		c.ghostList[ent.key] = ghostList
		c.trimGhostList(ghostList)
	}
	return EvictedEntry{
		Buffer:     ent.buffer,
		Wrapper:    outWrapper,
		ResourceID: ent.key.ResourceID,
		PageNumber: ent.key.PageNumber,
	}
}

func (c *Cache) trimGhostList(l *list.List) {
	limit := c.capacity
	if l == c.b2 {
		limit = 2 * c.capacity
	}
	for l.Len() > limit {
		c.dropGhostLRU(l)
	}
}

// access implements the shared hit-handling for GetPage/GetAndPin: moves the
// entry to MRU, applying the anti-prefetch credit before any T1->T2
// promotion. A resident entry whose wrapper has been marked expired (e.g. by
// ExpelAllForResource) is never handed back as a hit; access on it fails
// with the wrapper's *page.ExpiredError instead.
func (c *Cache) access(key Key) (*entry, bool, error) {
	ent, ok := c.entries[key]
	if !ok {
		cacheMisses.WithLabelValues(c.name).Inc()
		return nil, false, nil
	}
	if err := ent.wrapper.CheckNotExpired(); err != nil {
		return nil, false, err
	}
	cacheHits.WithLabelValues(c.name).Inc()
	switch ent.list {
	case inT1:
		if ent.freshCredit {
			ent.freshCredit = false
			c.t1.MoveToFront(ent.elem)
		} else {
			c.t1.Remove(ent.elem)
			ent.elem = c.t2.PushFront(key)
			ent.list = inT2
		}
	case inT2:
		c.t2.MoveToFront(ent.elem)
	}
	return ent, true, nil
}

// GetPage returns the wrapper for key, ok=false on a miss, or a
// *page.ExpiredError if the resident entry has been expired.
func (c *Cache) GetPage(resourceID int64, pageNumber uint32) (*page.Wrapper, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok, err := c.access(Key{ResourceID: resourceID, PageNumber: pageNumber})
	if err != nil || !ok {
		return nil, false, err
	}
	return ent.wrapper, true, nil
}

// GetAndPin is GetPage but increments the pin count, excluding the page
// from victim selection until a matching UnpinPage.
func (c *Cache) GetAndPin(resourceID int64, pageNumber uint32) (*page.Wrapper, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok, err := c.access(Key{ResourceID: resourceID, PageNumber: pageNumber})
	if err != nil || !ok {
		return nil, false, err
	}
	ent.pinCount++
	return ent.wrapper, true, nil
}

// UnpinPage decrements the pin count; a no-op if not pinned or not present.
func (c *Cache) UnpinPage(resourceID int64, pageNumber uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[Key{ResourceID: resourceID, PageNumber: pageNumber}]
	if !ok || ent.pinCount == 0 {
		return
	}
	ent.pinCount--
}

// ExpelAllForResource marks every entry for resourceID expired; they are
// preferred as victims on subsequent admissions while they remain resident.
func (c *Cache) ExpelAllForResource(resourceID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, ent := range c.entries {
		if key.ResourceID == resourceID {
			ent.wrapper.MarkExpired()
		}
	}
}

// GetAllForResource returns every currently-cached live (non-expired) entry
// for resourceID, in no specified order. Never returns nil.
func (c *Cache) GetAllForResource(resourceID int64) []*page.Wrapper {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*page.Wrapper, 0)
	for key, ent := range c.entries {
		if key.ResourceID == resourceID && !ent.wrapper.IsExpired() {
			out = append(out, ent.wrapper)
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
