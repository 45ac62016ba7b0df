// Package dbinstance wires the storage-core components (catalogue,
// buffer pool, query heap) into one running instance, replacing the
// spec's abstract-factory/singleton pattern with a plain constructor
// function per spec §9's Design Notes.
package dbinstance

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"golang.org/x/sync/semaphore"

	"github.com/royd1990/corestore/internal/bufferpool"
	"github.com/royd1990/corestore/internal/catalog"
	"github.com/royd1990/corestore/internal/config"
	"github.com/royd1990/corestore/internal/queryheap"
	"github.com/royd1990/corestore/internal/resource"
	"github.com/royd1990/corestore/internal/types"
)

// DBInstance owns everything one process needs to serve queries: the
// configuration it was built from, the catalogue of known tables and
// indexes, the shared buffer pool, the query heap, and a semaphore
// bounding concurrent foreground query threads.
type DBInstance struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Pool    *bufferpool.Pool
	Heap    *queryheap.Heap

	logger *log.Logger
	sem    *semaphore.Weighted
}

// New builds a DBInstance: loads the catalogue sidecar catalog.yaml from
// inside cfg.DataDirectory (an absent file gives an empty catalogue; the
// file is written by Close), constructs the buffer pool sized per
// CACHE_SIZE_FOR_PAGE_<sz>, and builds a query heap bounded by
// QUERY_HEAP_SIZE spilling into TEMPSPACE_DIRECTORY.
func New(cfg *config.Config, logger *log.Logger) (*DBInstance, error) {
	if logger == nil {
		logger = log.Default()
	}
	cat, err := catalog.Load(filepath.Join(cfg.DataDirectory, "catalog.yaml"))
	if err != nil {
		return nil, fmt.Errorf("dbinstance: load catalogue: %w", err)
	}

	pool := bufferpool.New(logger, func(pageSize int) int {
		return cfg.CacheSizeForPage(pageSize)
	})

	heap := queryheap.New(logger, cfg.QueryHeapSize, cfg.TempspaceDirectory)

	return &DBInstance{
		Config:  cfg,
		Catalog: cat,
		Pool:    pool,
		Heap:    heap,
		logger:  logger,
		sem:     semaphore.NewWeighted(int64(cfg.NumConcurrentQueries)),
	}, nil
}

// AcquireQuerySlot blocks until a foreground query thread slot is free,
// bounded by NUM_CONCURRENT_QUERIES (spec §5: "bounded by configuration").
func (d *DBInstance) AcquireQuerySlot(ctx context.Context) error {
	return d.sem.Acquire(ctx, 1)
}

// ReleaseQuerySlot returns a foreground query thread slot.
func (d *DBInstance) ReleaseQuerySlot() {
	d.sem.Release(1)
}

// OpenTable looks name up in the catalogue (an unknown name is an error;
// it is not registered here) and opens its resource manager, binding it into the shared buffer
// pool under its catalogue-assigned resource id.
func (d *DBInstance) OpenTable(name string) (int64, error) {
	entry, ok := d.Catalog.Table(name)
	if !ok {
		return 0, fmt.Errorf("dbinstance: unknown table %q", name)
	}
	mgr, err := resource.Open(filepath.Join(d.Config.DataDirectory, entry.File))
	if err != nil {
		return 0, fmt.Errorf("dbinstance: open table %q: %w", name, err)
	}
	d.Pool.RegisterResource(entry.ResourceID, mgr)
	return entry.ResourceID, nil
}

// CreateTable creates a new table file, registers it with the
// catalogue, and binds it into the buffer pool.
func (d *DBInstance) CreateTable(name string, schema *types.TableSchema) (int64, error) {
	file := name + ".tbl"
	mgr, err := resource.Create(filepath.Join(d.Config.DataDirectory, file), schema)
	if err != nil {
		return 0, fmt.Errorf("dbinstance: create table %q: %w", name, err)
	}
	id, err := d.Catalog.RegisterTable(name, file)
	if err != nil {
		mgr.Close()
		return 0, err
	}
	d.Pool.RegisterResource(id, mgr)
	return id, nil
}

// CloseTable flushes and expels name's cached pages (bufferpool.Pool's
// resource-scoped close path) and closes its resource manager, without
// touching any other table or the shared query heap. The table remains in
// the catalogue and can be reopened with OpenTable.
func (d *DBInstance) CloseTable(name string) error {
	entry, ok := d.Catalog.Table(name)
	if !ok {
		return fmt.Errorf("dbinstance: unknown table %q", name)
	}
	return d.Pool.CloseResource(entry.ResourceID)
}

// Close flushes the catalogue, closes the query heap, and closes the
// buffer pool (which in turn flushes, expels, and closes every registered
// resource manager).
func (d *DBInstance) Close() error {
	d.Heap.Close()
	if err := d.Catalog.Flush(); err != nil {
		d.logger.Printf("dbinstance: flushing catalogue: %v", err)
	}
	return d.Pool.Close()
}
