package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
http_addr: ":9090"
symbols: [BTCUSDT, ETHUSDT]
fee_rate: "0.0005"
feed:
  url: "wss://example.test/ws"
journal:
  backend: kafka
  brokers: [localhost:9092]
  topic: fills
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, "wss://example.test/ws", cfg.Feed.URL)
	assert.Equal(t, "kafka", cfg.Journal.Backend)

	rate, err := cfg.ParsedFeeRate()
	require.NoError(t, err)
	assert.Equal(t, "0.0005", rate.String())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `symbols: [BTCUSDT]`))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "none", cfg.Journal.Backend)
	assert.Equal(t, 1024, cfg.CommandBuffer)
}

func TestLoadEnvOverridesDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	cfg, err := Load(writeConfig(t, `
journal:
  backend: postgres
  database_url: "postgres://file/db"
`))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Journal.DatabaseURL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, `fee_rate: "abc"`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `fee_rate: "-0.1"`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "journal:\n  backend: redis\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
