package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PAGECRAFT_CONFIG_DIR", dir)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Store.Driver)
	require.Equal(t, filepath.Join(dir, "data"), cfg.Store.Dir)
	require.Equal(t, 40, cfg.Engine.NestThreshold)
	require.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PAGECRAFT_CONFIG_DIR", dir)
	yml := "store:\n  driver: postgres\n  dsn: postgres://db/pc\nengine:\n  nestThreshold: 25\n  maxDepth: 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Store.Driver)
	require.Equal(t, "postgres://db/pc", cfg.Store.DSN)
	require.Equal(t, 25, cfg.Engine.NestThreshold)
	require.Equal(t, 3, cfg.Engine.MaxDepth)

	t.Setenv("PAGECRAFT_STORE", "memory")
	t.Setenv("PAGECRAFT_NEST_THRESHOLD", "60")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Store.Driver)
	require.Equal(t, 60, cfg.Engine.NestThreshold)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PAGECRAFT_CONFIG_DIR", dir)

	cfg := DefaultConfig()
	cfg.Export = ExportConfig{Driver: "s3", S3: S3Config{Bucket: "site-backups", Region: "eu-west-1", PathStyle: true}}
	require.NoError(t, SaveConfig(&cfg))

	got, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "s3", got.Export.Driver)
	require.Equal(t, "site-backups", got.Export.S3.Bucket)
	require.True(t, got.Export.S3.PathStyle)

	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range ents {
		require.NotContains(t, e.Name(), ".tmp", "temp files must be renamed away")
	}
}

func TestParseDriver_Aliases(t *testing.T) {
	for in, want := range map[string]Driver{"": DriverSQLite, "PG": DriverPostgres, "surreal": DriverSurreal, "mem": DriverMemory} {
		got, err := ParseDriver(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}
}
