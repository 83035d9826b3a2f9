package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.APIURL != "http://127.0.0.1:3002" {
		t.Fatalf("expected default API URL, got %q", cfg.APIURL)
	}
	if cfg.DBPath != "" {
		t.Fatalf("expected empty db path, got %q", cfg.DBPath)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Upload.Dir != DefaultUploadDir {
		t.Fatalf("expected upload dir %q, got %q", DefaultUploadDir, cfg.Upload.Dir)
	}
	if cfg.Upload.MaxUploadBytes != DefaultMaxUploadBytes {
		t.Fatalf("expected max upload default %d, got %d", int64(DefaultMaxUploadBytes), cfg.Upload.MaxUploadBytes)
	}
	if cfg.ArtifactDir != DefaultArtifactDir {
		t.Fatalf("expected artifact dir %q, got %q", DefaultArtifactDir, cfg.ArtifactDir)
	}
	if cfg.Analysis.Script != DefaultAnalyzerScript {
		t.Fatalf("expected analyzer script %q, got %q", DefaultAnalyzerScript, cfg.Analysis.Script)
	}
	if cfg.Analysis.TimeoutSeconds != DefaultAnalysisTimeoutSeconds {
		t.Fatalf("expected analysis timeout %d, got %d", DefaultAnalysisTimeoutSeconds, cfg.Analysis.TimeoutSeconds)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".tumorscope.toml")
	if err := os.WriteFile(path, []byte(`api_url = "http://localhost:9999"
artifact_dir = "artifacts"
log_level = "warn"

[analysis]
script = "detect.py"
timeout_seconds = 5
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:9999" {
		t.Fatalf("expected api_url 'http://localhost:9999', got %q", cfg.APIURL)
	}
	if cfg.ArtifactDir != "artifacts" {
		t.Fatalf("expected artifact_dir 'artifacts', got %q", cfg.ArtifactDir)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log_level 'warn', got %q", cfg.LogLevel)
	}
	if cfg.Analysis.Script != "detect.py" {
		t.Fatalf("expected script 'detect.py', got %q", cfg.Analysis.Script)
	}
	if cfg.Analysis.TimeoutSeconds != 5 {
		t.Fatalf("expected timeout 5, got %d", cfg.Analysis.TimeoutSeconds)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.tumorscope.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Fatal("defaults should be preserved")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := Config{}
	cfg.normalizeDefaults()
	if cfg.Upload.MaxUploadBytes != DefaultMaxUploadBytes {
		t.Fatalf("expected normalized max upload %d, got %d", int64(DefaultMaxUploadBytes), cfg.Upload.MaxUploadBytes)
	}
	if cfg.Analysis.PythonBin != DefaultPythonBin {
		t.Fatalf("expected normalized python bin %q, got %q", DefaultPythonBin, cfg.Analysis.PythonBin)
	}
	if cfg.Analysis.TimeoutSeconds != DefaultAnalysisTimeoutSeconds {
		t.Fatalf("expected normalized timeout %d, got %d", DefaultAnalysisTimeoutSeconds, cfg.Analysis.TimeoutSeconds)
	}
}
