package queryheap

import (
	"container/list"
	"encoding/binary"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/royd1990/corestore/internal/page"
	"github.com/royd1990/corestore/internal/resource"
	"github.com/royd1990/corestore/internal/types"
)

// ReservedFraction (R) is the fraction of the total byte budget set aside
// for spill block buffers; the remainder is the assignable pool.
const ReservedFraction = 0.5

// AssignmentCapFraction (F) bounds any single operator's share of the
// assignable pool.
const AssignmentCapFraction = 0.33

// MinInternalSortTuples is the smallest internal sort array reserve_sort_heap
// will ever award, expressed in tuples.
const MinInternalSortTuples = 64

type assignment struct {
	id          int64
	columnTypes []types.ColumnType
	schema      *types.TableSchema
	tupleBytes  int
	shareBytes  int
	arrayTuples int
	arrayOut    bool

	mgr  *resource.Manager
	file string
	runs []runDescriptor
}

type runDescriptor struct {
	firstBlock uint32
	numBlocks  int
}

type waiter struct {
	minBytes         int
	assignCap        int
	maxByCardinality int
	share            int // set under h.mu by wakeWaiters before grant is closed
	grant            chan struct{}
	aborted          chan struct{}
}

// Heap bounds the memory usable by sort operators in flight, serving fair,
// FIFO reservation of internal sort arrays and spill-run persistence.
type Heap struct {
	logger *log.Logger

	totalBytes      int
	reservedBytes   int // R * totalBytes, for spill block buffers
	assignableBytes int // totalBytes - reservedBytes
	blockCount      int // reservedBytes / BlockPageSize

	tempDir string

	mu          sync.Mutex
	closed      bool
	freeBytes   int // free within assignableBytes
	freeBlocks  int // free spill blocks
	assignments map[int64]*assignment
	waiters     *list.List // FIFO of *waiter
}

// New builds a heap with totalBytes drawn from configuration, spilling to
// tempDir.
func New(logger *log.Logger, totalBytes int, tempDir string) *Heap {
	if logger == nil {
		logger = log.Default()
	}
	reserved := int(float64(totalBytes) * ReservedFraction)
	assignable := totalBytes - reserved
	return &Heap{
		logger:          logger,
		totalBytes:      totalBytes,
		reservedBytes:   reserved,
		assignableBytes: assignable,
		blockCount:      reserved / BlockPageSize,
		tempDir:         tempDir,
		freeBytes:       assignable,
		freeBlocks:      reserved / BlockPageSize,
		assignments:     make(map[int64]*assignment),
		waiters:         list.New(),
	}
}

func newHeapID() int64 {
	b := uuid.New()
	v := int64(binary.BigEndian.Uint64(b[:8]))
	if v < 0 {
		v = -v
	}
	if v == 0 {
		v = 1
	}
	return v
}

// ReserveSortHeap blocks until at least MinInternalSortTuples*tupleBytes
// bytes are free, then awards a share of the assignable pool and allocates
// an internal sort array sized for share/tupleBytes tuples.
func (h *Heap) ReserveSortHeap(columnTypes []types.ColumnType, estimatedCardinality int) (int64, error) {
	schema, err := syntheticSchema(columnTypes)
	if err != nil {
		return 0, &QueryHeapError{Reason: err.Error()}
	}
	tb := schema.RecordWidth()
	minimum := MinInternalSortTuples * tb
	assignCap := int(float64(h.assignableBytes) * AssignmentCapFraction)
	if minimum > assignCap {
		return 0, &OutOfHeapSpaceError{Reason: fmt.Sprintf("minimum reservation %d exceeds per-assignment cap %d", minimum, assignCap)}
	}
	maxByCardinality := 2 * estimatedCardinality * tb

	share, err := h.reserveShare(minimum, assignCap, maxByCardinality)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	if h.closed {
		// Closed between the reservation and here: give the bytes back
		// rather than stranding them, and let a still-queued waiter use them.
		h.freeBytes += share
		h.wakeWaiters()
		h.mu.Unlock()
		return 0, &QueryHeapError{Reason: "heap closed"}
	}
	id := newHeapID()
	h.assignments[id] = &assignment{
		id:          id,
		columnTypes: columnTypes,
		schema:      schema,
		tupleBytes:  tb,
		shareBytes:  share,
		arrayTuples: share / tb,
	}
	h.mu.Unlock()
	return id, nil
}

// computeShare picks this reservation's share out of the current free pool
// and reserves it by decrementing h.freeBytes. Caller must hold h.mu; the
// decrement happens in the same critical section as the pick so concurrent
// callers (direct or through wakeWaiters) can never compute a share against
// bytes another caller has already been awarded.
func (h *Heap) computeShare(minimum, assignCap, maxByCardinality int) int {
	share := minimum
	if h.freeBytes > minimum {
		sample := int(rand.ExpFloat64() * float64(h.freeBytes) / 2)
		share = maxInt(minimum, minInt(sample, maxByCardinality))
		share = minInt(share, h.freeBytes)
		share = minInt(share, assignCap)
		share = maxInt(share, minimum)
	}
	h.freeBytes -= share
	return share
}

// reserveShare blocks until minimum bytes are free, then returns this
// reservation's share, already deducted from h.freeBytes. When a wait is
// required, the share is computed and reserved by wakeWaiters inside the
// same locked section that grants the waiter, never re-derived afterward
// from a freeBytes value another waiter may have since consumed.
func (h *Heap) reserveShare(minimum, assignCap, maxByCardinality int) (int, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, &QueryHeapError{Reason: "heap closed"}
	}
	if h.waiters.Len() == 0 && h.freeBytes >= minimum {
		share := h.computeShare(minimum, assignCap, maxByCardinality)
		h.mu.Unlock()
		return share, nil
	}
	w := &waiter{
		minBytes:         minimum,
		assignCap:        assignCap,
		maxByCardinality: maxByCardinality,
		grant:            make(chan struct{}),
		aborted:          make(chan struct{}),
	}
	elem := h.waiters.PushBack(w)
	h.mu.Unlock()

	select {
	case <-w.grant:
		return w.share, nil
	case <-w.aborted:
		h.mu.Lock()
		h.waiters.Remove(elem)
		h.mu.Unlock()
		return 0, &AbortedError{}
	}
}

// wakeWaiters serves the front of the FIFO queue while enough free bytes
// remain for its minimum, never skipping ahead to a later waiter. Each
// woken waiter's share is computed and deducted from h.freeBytes here,
// atomically with the grant, so two waiters can never be woken against the
// same unconsumed bytes. Caller must hold h.mu.
func (h *Heap) wakeWaiters() {
	for {
		front := h.waiters.Front()
		if front == nil {
			return
		}
		w := front.Value.(*waiter)
		if h.freeBytes < w.minBytes {
			return
		}
		w.share = h.computeShare(w.minBytes, w.assignCap, w.maxByCardinality)
		h.waiters.Remove(front)
		close(w.grant)
	}
}

func (h *Heap) getAssignment(id int64) (*assignment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, &QueryHeapError{Reason: "heap closed"}
	}
	a, ok := h.assignments[id]
	if !ok {
		return nil, &QueryHeapError{Reason: fmt.Sprintf("unknown heap id %d", id)}
	}
	return a, nil
}

// GetSortArray hands out the fixed-size internal sort array's tuple
// capacity for id, without releasing any run iterators already obtained.
func (h *Heap) GetSortArray(id int64) (int, error) {
	a, err := h.getAssignment(id)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	a.arrayOut = true
	h.mu.Unlock()
	return a.arrayTuples, nil
}

// ReleaseSortArray returns the internal sort array to the assignment
// without affecting run iterators.
func (h *Heap) ReleaseSortArray(id int64) error {
	a, err := h.getAssignment(id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	a.arrayOut = false
	h.mu.Unlock()
	return nil
}

// MaxInternalTuples returns the internal sort array's tuple capacity.
func (h *Heap) MaxInternalTuples(id int64) (int, error) {
	a, err := h.getAssignment(id)
	if err != nil {
		return 0, err
	}
	return a.arrayTuples, nil
}

// WriteRun creates the spill file on first call, allocates pages from the
// reserved block buffers, appends tuples via TablePage.InsertTuple into
// successive pages, and records the resulting run descriptor.
func (h *Heap) WriteRun(id int64, tuples []types.Tuple) error {
	a, err := h.getAssignment(id)
	if err != nil {
		return err
	}
	if err := h.ensureSpillFile(a); err != nil {
		return err
	}

	firstBlock := uint32(0)
	numBlocks := 0
	var cur *page.TablePage
	var curBuf []byte

	flush := func() error {
		if cur == nil {
			return nil
		}
		w := page.NewWrapper(cur)
		if err := a.mgr.WritePage(curBuf, w); err != nil {
			return err
		}
		return nil
	}

	for _, tu := range tuples {
		for {
			if cur == nil {
				if err := h.acquireBlock(); err != nil {
					return err
				}
				curBuf = make([]byte, BlockPageSize)
				p, err := a.mgr.ReserveNewPage(curBuf)
				if err != nil {
					h.releaseBlock()
					return err
				}
				cur = p
				if numBlocks == 0 {
					firstBlock = p.PageNumber()
				}
				numBlocks++
			}
			ok, err := cur.InsertTuple(tu)
			if err != nil {
				return err
			}
			if ok {
				break
			}
			if err := flush(); err != nil {
				return err
			}
			cur = nil
		}
	}
	if err := flush(); err != nil {
		return err
	}

	h.mu.Lock()
	a.runs = append(a.runs, runDescriptor{firstBlock: firstBlock, numBlocks: numBlocks})
	h.mu.Unlock()
	return nil
}

func (h *Heap) ensureSpillFile(a *assignment) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a.mgr != nil {
		return nil
	}
	a.file = filepath.Join(h.tempDir, fmt.Sprintf("qheap.%d", a.id))
	mgr, err := resource.Create(a.file, a.schema)
	if err != nil {
		return &QueryHeapError{Reason: err.Error()}
	}
	a.mgr = mgr
	return nil
}

func (h *Heap) acquireBlock() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.freeBlocks <= 0 {
		return &OutOfHeapSpaceError{Reason: "no spill blocks available"}
	}
	h.freeBlocks--
	return nil
}

func (h *Heap) releaseBlock() {
	h.mu.Lock()
	h.freeBlocks++
	h.mu.Unlock()
}

// ExternalRuns returns one lazy, restartable run iterator per spill run.
// Fails if the number of runs exceeds the maximum buffer share per
// assignment, signalling the heap is too small for this sort.
func (h *Heap) ExternalRuns(id int64) ([]*RunIterator, error) {
	a, err := h.getAssignment(id)
	if err != nil {
		return nil, err
	}
	maxRuns := int(float64(h.assignableBytes) * AssignmentCapFraction / float64(BlockPageSize))
	if maxRuns < 1 {
		maxRuns = 1
	}
	if len(a.runs) > maxRuns {
		return nil, &QueryHeapError{Reason: "heap too small for this sort: too many spill runs"}
	}
	out := make([]*RunIterator, len(a.runs))
	for i, rd := range a.runs {
		out[i] = newRunIterator(a.mgr, a.schema, rd)
	}
	return out, nil
}

// Release drops run iterators, closes and deletes the spill file, frees
// the internal array, and wakes FIFO waiters now satisfiable.
func (h *Heap) Release(id int64) error {
	h.mu.Lock()
	a, ok := h.assignments[id]
	if !ok {
		h.mu.Unlock()
		return &QueryHeapError{Reason: fmt.Sprintf("unknown heap id %d", id)}
	}
	delete(h.assignments, id)
	h.freeBytes += a.shareBytes
	blocksUsed := 0
	for _, r := range a.runs {
		blocksUsed += r.numBlocks
	}
	h.freeBlocks += blocksUsed
	h.wakeWaiters()
	h.mu.Unlock()

	if a.mgr != nil {
		if err := a.mgr.Close(); err != nil {
			h.logger.Printf("queryheap: closing spill file for heap %d: %v", id, err)
		}
		if err := os.Remove(a.file); err != nil && !os.IsNotExist(err) {
			h.logger.Printf("queryheap: removing spill file for heap %d: %v", id, err)
		}
	}
	return nil
}

// Close aborts every waiter and marks the heap closed; in-flight
// assignments are left to be released individually by their owners.
func (h *Heap) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for e := h.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		close(w.aborted)
	}
	h.waiters.Init()
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
