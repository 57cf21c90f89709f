package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	def := DefaultConfig()
	if cfg.Processing.NumWorkers != def.Processing.NumWorkers {
		t.Errorf("Expected default workers %d, got %d", def.Processing.NumWorkers, cfg.Processing.NumWorkers)
	}
	if cfg.Segmentation.Threshold != "otsu" {
		t.Errorf("Expected default threshold otsu, got %q", cfg.Segmentation.Threshold)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctcvolume.yaml")
	data := []byte(`
processing:
  numWorkers: 3
cache:
  frameCacheMB: 0
output:
  verbose: true
  compressTiff: true
logging:
  file: /tmp/ctcvolume.log
segmentation:
  threshold: yen
preview:
  axis: y
  width: 128
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.NumWorkers != 3 || cfg.Cache.FrameCacheMB != 0 {
		t.Errorf("Unexpected processing/cache values: %+v %+v", cfg.Processing, cfg.Cache)
	}
	if !cfg.Output.Verbose || !cfg.Output.CompressTIFF {
		t.Errorf("Expected verbose and compressed output, got %+v", cfg.Output)
	}
	if cfg.Segmentation.Threshold != "yen" || cfg.Preview.Axis != "y" || cfg.Preview.Width != 128 {
		t.Errorf("Unexpected segmentation/preview values")
	}
	// Unset keys keep their defaults
	if cfg.Preview.Quality != 90 || cfg.Logging.MaxSizeMB != 100 {
		t.Errorf("Expected defaults for unset keys, got quality %d maxSize %d", cfg.Preview.Quality, cfg.Logging.MaxSizeMB)
	}

	lc := cfg.LoggingConfig()
	if !lc.Verbose || lc.File != "/tmp/ctcvolume.log" {
		t.Errorf("Unexpected logging config %+v", lc)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("processing: [1, 2"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Error("Expected a parse error")
	}

	zero := filepath.Join(dir, "zero.yaml")
	if err := os.WriteFile(zero, []byte("processing:\n  numWorkers: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(zero); err == nil {
		t.Error("Expected a validation error for zero workers")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Preview.Quality != DefaultConfig().Preview.Quality {
		t.Errorf("Reloaded config lost preview quality")
	}
}
