package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Search.MaxCandidates)
	assert.Equal(t, 300, cfg.Search.TopN)
	assert.Equal(t, 30, cfg.Search.FallbackThreshold)
	assert.Equal(t, "fast", cfg.Search.RankMode)
	assert.Equal(t, "zstd", cfg.Cache.Compression)
	assert.Equal(t, "standard", cfg.Index.Normalizer)
	assert.Equal(t, 1000, cfg.Index.WriteBatchSize)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
cache:
  dir: /var/lib/termshard
  compression: lz4
  loadTimeout: 5s
search:
  rankMode: full
  topN: 50
index:
  normalizer: passthrough
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("SP_POSTGRES_HOST", "db.internal")
	t.Setenv("SP_REDIS_ADDR", "redis.internal:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/termshard", cfg.Cache.Dir)
	assert.Equal(t, "lz4", cfg.Cache.Compression)
	assert.Equal(t, 5*time.Second, cfg.Cache.LoadTimeout)
	assert.Equal(t, "full", cfg.Search.RankMode)
	assert.Equal(t, 50, cfg.Search.TopN)
	assert.Equal(t, 5000, cfg.Search.MaxCandidates, "unset fields keep defaults")
	assert.Equal(t, "passthrough", cfg.Index.Normalizer)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
}

func TestLoadRejectsUnknownModes(t *testing.T) {
	t.Setenv("SP_CACHE_COMPRESSION", "brotli")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.compression")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "h", Port: 1, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", p.DSN())
}
