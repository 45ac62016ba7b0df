// Package config loads the storage core's runtime settings from a YAML
// file, falling back to the legacy defaults where a key is absent.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Legacy defaults, matching the values the original system shipped with.
const (
	DefaultQueryHeapSize    = 20 * 1024 * 1024 // 20 MiB
	DefaultCacheSizePages   = 1000
	DefaultNumIOBuffers     = 128
	DefaultNumConcurrent    = 8
	DefaultBlockReadNsecs   = 8_000_000
	DefaultBlockWriteNsecs  = 8_000_000
	DefaultRandomReadNsecs  = 4_000_000
	DefaultRandomWriteNsecs = 4_000_000
)

// Config mirrors the external key table one field per key. Persisted
// format is YAML (resolving the spec's "format-agnostic" open question;
// see DESIGN.md), via the same yaml.v3 dependency the teacher already
// carries for its output-format flag.
type Config struct {
	DataDirectory      string `yaml:"data_directory"`
	TempspaceDirectory string `yaml:"tempspace_directory"`

	QueryHeapSize int `yaml:"query_heap_size"`

	// CacheSizeForPageSize maps a page size to its cache capacity in
	// pages, keyed by the page size itself (the YAML key
	// CACHE_SIZE_FOR_PAGE_<sz> collapses to one map).
	CacheSizeForPageSize map[int]int `yaml:"cache_size_for_page_size"`

	NumIOBuffers         int `yaml:"num_io_buffers"`
	NumConcurrentQueries int `yaml:"num_concurrent_queries"`

	BlockReadTransferNsecs        int64 `yaml:"block_read_transfer_nsecs"`
	BlockWriteTransferNsecs       int64 `yaml:"block_write_transfer_nsecs"`
	BlockRandomReadOverheadNsecs  int64 `yaml:"block_random_read_overhead_nsecs"`
	BlockRandomWriteOverheadNsecs int64 `yaml:"block_random_write_overhead_nsecs"`
}

func applyDefaults(c *Config) {
	if c.QueryHeapSize == 0 {
		c.QueryHeapSize = DefaultQueryHeapSize
	}
	if c.CacheSizeForPageSize == nil {
		c.CacheSizeForPageSize = make(map[int]int)
	}
	if c.NumIOBuffers == 0 {
		c.NumIOBuffers = DefaultNumIOBuffers
	}
	if c.NumConcurrentQueries == 0 {
		c.NumConcurrentQueries = DefaultNumConcurrent
	}
	if c.BlockReadTransferNsecs == 0 {
		c.BlockReadTransferNsecs = DefaultBlockReadNsecs
	}
	if c.BlockWriteTransferNsecs == 0 {
		c.BlockWriteTransferNsecs = DefaultBlockWriteNsecs
	}
	if c.BlockRandomReadOverheadNsecs == 0 {
		c.BlockRandomReadOverheadNsecs = DefaultRandomReadNsecs
	}
	if c.BlockRandomWriteOverheadNsecs == 0 {
		c.BlockRandomWriteOverheadNsecs = DefaultRandomWriteNsecs
	}
}

// CacheSizeForPage returns the configured cache capacity, in pages, for
// pageSize, defaulting to DefaultCacheSizePages when unset.
func (c *Config) CacheSizeForPage(pageSize int) int {
	if n, ok := c.CacheSizeForPageSize[pageSize]; ok {
		return n
	}
	return DefaultCacheSizePages
}

// Load reads and validates a YAML config file, applying legacy defaults
// for any field the file leaves at its zero value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&c)
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.DataDirectory == "" {
		return fmt.Errorf("config: data_directory is required")
	}
	info, err := os.Stat(c.DataDirectory)
	if err != nil {
		return fmt.Errorf("config: data_directory %q: %w", c.DataDirectory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config: data_directory %q is not a directory", c.DataDirectory)
	}
	if c.TempspaceDirectory == "" {
		return fmt.Errorf("config: tempspace_directory is required")
	}
	info, err = os.Stat(c.TempspaceDirectory)
	if err != nil {
		return fmt.Errorf("config: tempspace_directory %q: %w", c.TempspaceDirectory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config: tempspace_directory %q is not a directory", c.TempspaceDirectory)
	}
	return nil
}

// Save writes c back to path as YAML.
func Save(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
