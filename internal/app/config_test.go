package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", validSecret)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, StorePostgres, cfg.StoreDriver)
	require.Equal(t, int64(3600000), cfg.JWTExpirationMs)

	tc := cfg.TokenConfig()
	require.Equal(t, time.Hour, tc.AccessTTL)
	require.Equal(t, 7*24*time.Hour, tc.RefreshTTL)
	require.Nil(t, tc.RefreshSecret)
}

func TestLoadConfigRejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	_, err := LoadConfig("")
	require.ErrorContains(t, err, "JWT_SECRET must be at least 32 bytes")
}

func TestLoadConfigRejectsUnknownDrivers(t *testing.T) {
	t.Setenv("JWT_SECRET", validSecret)
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("CACHE_DRIVER", "memcached")
	_, err := LoadConfig("")
	require.ErrorContains(t, err, "STORE_DRIVER")
	require.ErrorContains(t, err, "CACHE_DRIVER")
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	t.Setenv("JWT_SECRET", validSecret)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_EXPIRATION_MS=1000\nSTORE_DRIVER=memory\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("JWT_EXPIRATION_MS")
		os.Unsetenv("STORE_DRIVER")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, time.Second, cfg.TokenConfig().AccessTTL)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}
