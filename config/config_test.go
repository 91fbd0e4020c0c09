package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APPENV", "")
	t.Setenv("STORE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, uint16(8080), cfg.AppPort)
	assert.Equal(t, BackendSQL, cfg.StoreBackend)
	assert.Equal(t, "batch", cfg.ImportCodeStrategy)
	assert.Equal(t, 5*time.Minute, cfg.AccountCacheTTL)
	assert.Equal(t, 14, cfg.BackupKeep)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APPPORT", "9090")
	t.Setenv("DBDRIVER", "Postgres")
	t.Setenv("STORE_BACKEND", "LevelDB")
	t.Setenv("IMPORT_CODE_STRATEGY", "live")
	t.Setenv("ACCOUNT_CACHE_TTL", "90s")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, uint16(9090), cfg.AppPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, BackendLevelDB, cfg.StoreBackend)
	assert.Equal(t, "live", cfg.ImportCodeStrategy)
	assert.Equal(t, 90*time.Second, cfg.AccountCacheTTL)
	assert.Equal(t, 3, cfg.RedisDB)
}

// Test that ConnectDatabase uses in-memory sqlite when APPENV=test
func TestConnectDatabase_TestEnv(t *testing.T) {
	t.Setenv("APPENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	db, err := ConnectDatabase(cfg)
	require.NoError(t, err)
	require.NotNil(t, db)
	assert.Equal(t, "sqlite", db.Dialector.Name())
}

func TestDialectorFor(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite"} {
		d, err := dialectorFor(&Config{DBDriver: driver, DBHost: "db", DBPort: 1, DBName: "clinic"})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}
	_, err := dialectorFor(&Config{DBDriver: "oracle"})
	assert.Error(t, err)
}
