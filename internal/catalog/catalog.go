// Package catalog tracks the tables and indexes known to a running
// instance: name, backing file, and statistics, persisted as a YAML
// sidecar file at the path given to Load (dbinstance keeps it as
// catalog.yaml in the data directory). Resource ids are stable for
// the life of the process but are assigned at load time, never
// persisted, matching spec §6's "arena + stable integer id" note.
package catalog

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// TableStats holds the optimizer-facing statistics the spec associates
// with a table entry.
type TableStats struct {
	RowCount  int64 `yaml:"row_count"`
	PageCount int64 `yaml:"page_count"`
}

// IndexStats holds the statistics associated with an index entry.
type IndexStats struct {
	EntryCount int64 `yaml:"entry_count"`
}

// TableEntry describes one table: its on-disk file and statistics. The
// ResourceID is assigned at load/registration time and is not
// serialized.
type TableEntry struct {
	Name       string     `yaml:"name"`
	File       string     `yaml:"file"`
	Stats      TableStats `yaml:"stats"`
	ResourceID int64      `yaml:"-"`
}

// IndexEntry describes one index over a table.
type IndexEntry struct {
	Name         string     `yaml:"name"`
	IndexedTable string     `yaml:"indexed_table"`
	File         string     `yaml:"file"`
	Stats        IndexStats `yaml:"stats"`
	ResourceID   int64      `yaml:"-"`
}

type onDisk struct {
	Tables  []TableEntry `yaml:"tables"`
	Indexes []IndexEntry `yaml:"indexes"`
}

// Catalog is the in-memory arena of table/index entries for one
// instance, handing out stable resource ids and persisting to a YAML
// sidecar on explicit Flush.
type Catalog struct {
	path string

	mu      sync.Mutex
	tables  map[string]*TableEntry
	indexes map[string]*IndexEntry
	nextID  int64
}

// Load reads path if it exists (an absent file is treated as an empty
// catalogue) and assigns fresh resource ids to every entry.
func Load(path string) (*Catalog, error) {
	c := &Catalog{
		path:    path,
		tables:  make(map[string]*TableEntry),
		indexes: make(map[string]*IndexEntry),
		nextID:  1,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var d onDisk
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	for i := range d.Tables {
		t := d.Tables[i]
		t.ResourceID = c.nextID
		c.nextID++
		c.tables[t.Name] = &t
	}
	for i := range d.Indexes {
		ix := d.Indexes[i]
		ix.ResourceID = c.nextID
		c.nextID++
		c.indexes[ix.Name] = &ix
	}
	return c, nil
}

// RegisterTable adds a new table entry, assigning it a fresh resource id.
func (c *Catalog) RegisterTable(name, file string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[name]; exists {
		return 0, fmt.Errorf("catalog: table %q already registered", name)
	}
	id := c.nextID
	c.nextID++
	c.tables[name] = &TableEntry{Name: name, File: file, ResourceID: id}
	return id, nil
}

// RegisterIndex adds a new index entry, assigning it a fresh resource id.
func (c *Catalog) RegisterIndex(name, indexedTable, file string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.indexes[name]; exists {
		return 0, fmt.Errorf("catalog: index %q already registered", name)
	}
	id := c.nextID
	c.nextID++
	c.indexes[name] = &IndexEntry{Name: name, IndexedTable: indexedTable, File: file, ResourceID: id}
	return id, nil
}

// Table returns the named table entry.
func (c *Catalog) Table(name string) (TableEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[name]
	if !ok {
		return TableEntry{}, false
	}
	return *t, true
}

// Index returns the named index entry.
func (c *Catalog) Index(name string) (IndexEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ix, ok := c.indexes[name]
	if !ok {
		return IndexEntry{}, false
	}
	return *ix, true
}

// UpdateTableStats overwrites the statistics recorded for a table.
func (c *Catalog) UpdateTableStats(name string, stats TableStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[name]
	if !ok {
		return fmt.Errorf("catalog: unknown table %q", name)
	}
	t.Stats = stats
	return nil
}

// UpdateIndexStats overwrites the statistics recorded for an index.
func (c *Catalog) UpdateIndexStats(name string, stats IndexStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ix, ok := c.indexes[name]
	if !ok {
		return fmt.Errorf("catalog: unknown index %q", name)
	}
	ix.Stats = stats
	return nil
}

// Tables returns every registered table entry.
func (c *Catalog) Tables() []TableEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TableEntry, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, *t)
	}
	return out
}

// Indexes returns every registered index entry.
func (c *Catalog) Indexes() []IndexEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]IndexEntry, 0, len(c.indexes))
	for _, ix := range c.indexes {
		out = append(out, *ix)
	}
	return out
}

// Flush persists the catalogue to its YAML sidecar. Resource ids are
// never written; they are reassigned on the next Load.
func (c *Catalog) Flush() error {
	c.mu.Lock()
	d := onDisk{
		Tables:  make([]TableEntry, 0, len(c.tables)),
		Indexes: make([]IndexEntry, 0, len(c.indexes)),
	}
	for _, t := range c.tables {
		d.Tables = append(d.Tables, *t)
	}
	for _, ix := range c.indexes {
		d.Indexes = append(d.Indexes, *ix)
	}
	path := c.path
	c.mu.Unlock()

	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("catalog: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	return nil
}
