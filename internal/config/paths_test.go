package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaths(t *testing.T) {
	base := t.TempDir()
	abs := filepath.Join(t.TempDir(), "elsewhere")

	paths, err := NewPaths(PathsConfig{
		BaseDir:    base,
		RawDataDir: "raw_data",
		OutputDir:  abs,
		CacheDir:   "raw_data/cache",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "raw_data"), paths.RawDataDir)
	assert.Equal(t, abs, paths.OutputDir)
	assert.Equal(t, filepath.Join(base, "raw_data", "cache"), paths.CacheDir)
	assert.Equal(t, filepath.Join(base, "logs"), paths.LogsDir, "empty directories use defaults")
}

func TestPathsEnsureDirectories(t *testing.T) {
	paths, err := NewPaths(PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	for _, dir := range []string{paths.RawDataDir, paths.OutputDir, paths.CacheDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestPathsResolve(t *testing.T) {
	paths, err := NewPaths(PathsConfig{BaseDir: "/srv/rates"})
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"fed_rate_hikes.csv", "/srv/rates/output/fed_rate_hikes.csv"},
		{"raw/ids_service_raw.csv", "/srv/rates/raw_data/ids_service_raw.csv"},
		{"cache/responses.db", "/srv/rates/raw_data/cache/responses.db"},
		{"/tmp/x.csv", "/tmp/x.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, paths.Resolve(tt.in))
		})
	}
}
