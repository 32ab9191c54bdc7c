package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaults(t *testing.T) {
	c, err := Get(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.ListenAddr)
	assert.Equal(t, "/api/views", c.Path)
	assert.Equal(t, "portfolio-views", c.Key)
	assert.Equal(t, "sqlite", c.Store)
	assert.Equal(t, 5*time.Second, c.StoreTimeout)
	assert.Equal(t, 5432, c.DbPort)
}

func TestGetEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := "VC_STORE=memory\nVC_KEY=from-file\nVC_STORE_TIMEOUT=2s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.env"), []byte(file), 0o600))

	t.Setenv("VC_KEY", "from-env")
	t.Setenv("VC_DB_PORT", "6543")

	c, err := Get(dir)
	require.NoError(t, err)

	assert.Equal(t, "memory", c.Store)
	assert.Equal(t, "from-env", c.Key)
	assert.Equal(t, 2*time.Second, c.StoreTimeout)
	assert.Equal(t, 6543, c.DbPort)
}

func TestGetRejectsUnknownStore(t *testing.T) {
	t.Setenv("VC_STORE", "redis")

	_, err := Get(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestValidate(t *testing.T) {
	base := Config{Path: "/api/views", Key: "k", Store: "memory", StoreTimeout: time.Second}
	require.NoError(t, base.Validate())

	tests := map[string]func(c *Config){
		"empty key":        func(c *Config) { c.Key = "" },
		"relative path":    func(c *Config) { c.Path = "api/views" },
		"zero timeout":     func(c *Config) { c.StoreTimeout = 0 },
		"blob without url": func(c *Config) { c.Store = "blob" },
		"mongo without uri": func(c *Config) {
			c.Store = "mongo"
			c.MongoDB = "views"
			c.MongoCollection = "blobs"
		},
		"sqlite without path": func(c *Config) { c.Store = "sqlite" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestCensoredConnectionString(t *testing.T) {
	c := Config{DbUser: "views", DbPass: "hunter2", DbHost: "db", DbPort: 5432, DbName: "views"}

	assert.Equal(t, "postgres://views:hunter2@db:5432/views", c.ConnectionString())
	assert.Equal(t, "postgres://views:******@db:5432/views", c.CensoredConnectionString())
	assert.NotContains(t, c.CensoredConnectionString(), "hunter2")
}
