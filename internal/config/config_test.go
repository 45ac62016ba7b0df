package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesLegacyDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "data_directory: " + dir + "\ntempspace_directory: " + dir + "\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.QueryHeapSize != DefaultQueryHeapSize {
		t.Errorf("QueryHeapSize = %d, want default %d", c.QueryHeapSize, DefaultQueryHeapSize)
	}
	if c.NumIOBuffers != DefaultNumIOBuffers {
		t.Errorf("NumIOBuffers = %d, want default %d", c.NumIOBuffers, DefaultNumIOBuffers)
	}
	if got := c.CacheSizeForPage(4096); got != DefaultCacheSizePages {
		t.Errorf("CacheSizeForPage(4096) = %d, want default %d", got, DefaultCacheSizePages)
	}
}

func TestLoadRejectsMissingDataDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "data_directory: /nonexistent/path/xyz\ntempspace_directory: " + dir + "\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for nonexistent data_directory")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	c := &Config{
		DataDirectory:        dir,
		TempspaceDirectory:   dir,
		QueryHeapSize:        1 << 20,
		CacheSizeForPageSize: map[int]int{4096: 2000},
		NumIOBuffers:         64,
		NumConcurrentQueries: 4,
	}
	applyDefaults(c)
	if err := Save(path, c); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.QueryHeapSize != c.QueryHeapSize {
		t.Errorf("QueryHeapSize round trip = %d, want %d", loaded.QueryHeapSize, c.QueryHeapSize)
	}
	if got := loaded.CacheSizeForPage(4096); got != 2000 {
		t.Errorf("CacheSizeForPage(4096) round trip = %d, want 2000", got)
	}
}

