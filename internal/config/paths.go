package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Paths contains every directory the pipelines read from or write to. It is
// built once from PathsConfig and passed to the components that touch the
// file system.
type Paths struct {
	BaseDir    string
	RawDataDir string
	OutputDir  string
	CacheDir   string
	LogsDir    string
}

// NewPaths resolves the configured directories. Relative directories are
// joined to BaseDir, or to the working directory when BaseDir is empty.
func NewPaths(cfg PathsConfig) (*Paths, error) {
	base := cfg.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolve := func(dir, fallback string) string {
		if dir == "" {
			dir = fallback
		}
		if filepath.IsAbs(dir) {
			return filepath.Clean(dir)
		}
		return filepath.Join(base, dir)
	}

	return &Paths{
		BaseDir:    base,
		RawDataDir: resolve(cfg.RawDataDir, "raw_data"),
		OutputDir:  resolve(cfg.OutputDir, "output"),
		CacheDir:   resolve(cfg.CacheDir, filepath.Join("raw_data", "cache")),
		LogsDir:    resolve(cfg.LogsDir, "logs"),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.RawDataDir,
		p.OutputDir,
		p.CacheDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// RawDataPath returns the path of a raw data file
func (p *Paths) RawDataPath(filename string) string {
	return filepath.Join(p.RawDataDir, filename)
}

// OutputPath returns the path of a chart output file
func (p *Paths) OutputPath(filename string) string {
	return filepath.Join(p.OutputDir, filename)
}

// CachePath returns the path of a cache file
func (p *Paths) CachePath(filename string) string {
	return filepath.Join(p.CacheDir, filename)
}

// Resolve returns filePath unchanged when absolute, and relative to the
// output directory otherwise. Paths prefixed with "raw/" or "cache/" resolve
// into the raw data and cache directories.
func (p *Paths) Resolve(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	switch {
	case strings.HasPrefix(filePath, "raw/"):
		return p.RawDataPath(strings.TrimPrefix(filePath, "raw/"))
	case strings.HasPrefix(filePath, "cache/"):
		return p.CachePath(strings.TrimPrefix(filePath, "cache/"))
	default:
		return p.OutputPath(filePath)
	}
}

// LogPathResolution logs the resolved directories
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Resolved paths",
		slog.String("base_dir", p.BaseDir),
		slog.String("raw_data_dir", p.RawDataDir),
		slog.String("output_dir", p.OutputDir),
		slog.String("cache_dir", p.CacheDir),
		slog.String("logs_dir", p.LogsDir))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
