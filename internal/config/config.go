package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL   = "http://127.0.0.1:3002"
	DefaultLogLevel = "info"

	DefaultDBFileName  = ".tumorscope.db"
	DefaultUploadDir   = "uploads"
	DefaultArtifactDir = "processed_images"

	DefaultAnalyzerScript = "smiley_overlay.py"
	DefaultPythonBin      = "python3"

	DefaultAnalysisTimeoutSeconds = 60
	DefaultMaxUploadBytes         = 16 * 1024 * 1024
	DefaultMultipartMaxMemory     = 8 * 1024 * 1024

	configFileName  = ".tumorscope.toml"
	configDirEnvKey = "TUMORSCOPE_CONFIG_DIR"
)

// AnalysisConfig defines runtime configuration for the analysis subprocess.
type AnalysisConfig struct {
	Script         string `toml:"script"`
	PythonBin      string `toml:"python_bin"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// UploadConfig defines runtime configuration for upload handling.
type UploadConfig struct {
	Dir                string `toml:"dir"`
	MaxUploadBytes     int64  `toml:"max_upload_bytes"`
	MultipartMaxMemory int64  `toml:"multipart_max_memory"`
}

// Config defines runtime configuration for tumorscope.
type Config struct {
	APIURL       string         `toml:"api_url"`
	DBPath       string         `toml:"db_path"`
	ArtifactDir  string         `toml:"artifact_dir"`
	IngestAPIKey string         `toml:"ingest_api_key"`
	LogLevel     string         `toml:"log_level"`
	Upload       UploadConfig   `toml:"upload"`
	Analysis     AnalysisConfig `toml:"analysis"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:      DefaultAPIURL,
		DBPath:      "",
		ArtifactDir: DefaultArtifactDir,
		LogLevel:    DefaultLogLevel,
		Upload: UploadConfig{
			Dir:                DefaultUploadDir,
			MaxUploadBytes:     DefaultMaxUploadBytes,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
		},
		Analysis: AnalysisConfig{
			Script:         DefaultAnalyzerScript,
			PythonBin:      DefaultPythonBin,
			TimeoutSeconds: DefaultAnalysisTimeoutSeconds,
		},
	}
}

// GlobalPath returns the path to the config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// Load reads config from the config file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}
		if cwd, err := os.Getwd(); err == nil {
			if err := loadFile(filepath.Join(cwd, configFileName), &cfg); err != nil {
				return nil, err
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	if apiURL := os.Getenv("TUMORSCOPE_API_URL"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv("TUMORSCOPE_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if dir := os.Getenv("TUMORSCOPE_ARTIFACT_DIR"); dir != "" {
		cfg.ArtifactDir = dir
	}
	if dir := os.Getenv("TUMORSCOPE_UPLOAD_DIR"); dir != "" {
		cfg.Upload.Dir = dir
	}
	if key := strings.TrimSpace(os.Getenv("TUMORSCOPE_API_KEY")); key != "" {
		cfg.IngestAPIKey = key
	}
	if script := strings.TrimSpace(os.Getenv("TUMORSCOPE_ANALYZER")); script != "" {
		cfg.Analysis.Script = script
	}
	if raw := strings.TrimSpace(os.Getenv("TUMORSCOPE_ANALYSIS_TIMEOUT")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.Analysis.TimeoutSeconds = parsed
		}
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalizeDefaults() {
	if c.Upload.Dir == "" {
		c.Upload.Dir = DefaultUploadDir
	}
	if c.Upload.MaxUploadBytes <= 0 {
		c.Upload.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Upload.MultipartMaxMemory <= 0 {
		c.Upload.MultipartMaxMemory = DefaultMultipartMaxMemory
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = DefaultArtifactDir
	}
	if c.Analysis.Script == "" {
		c.Analysis.Script = DefaultAnalyzerScript
	}
	if c.Analysis.PythonBin == "" {
		c.Analysis.PythonBin = DefaultPythonBin
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		c.Analysis.TimeoutSeconds = DefaultAnalysisTimeoutSeconds
	}
}
