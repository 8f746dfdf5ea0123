package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fund-returns/config"
	"github.com/warp/fund-returns/fund"
	"github.com/warp/fund-returns/store/sqlite"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := config.Load("", true)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, sqlite.DriverCGO, cfg.DB.Driver)
	assert.Equal(t, "fund_returns.db", cfg.DB.Path)
	assert.Equal(t, "gpt-4o", cfg.Annotator.Model)
	assert.Equal(t, 1000, cfg.Annotator.MaxTokens)
	assert.Empty(t, cfg.Annotator.APIKey)
	assert.Equal(t, fund.DefaultSourceColumns(), cfg.Ingest.Columns)
}

func TestLoad_FileAndEnv(t *testing.T) {
	// GIVEN: A file that sets the driver and one return column, and env
	// overrides for the path and the admin password
	path := writeConfig(t, `
server:
  http_addr: ":9090"
db:
  driver: sqlite
ingest:
  columns:
    manager: "Manager"
    returns:
      1Y: "Return 1Y"
`)
	t.Setenv("FUND_DB_PATH", "/tmp/other.db")
	t.Setenv("FUND_AUTH_ADMIN_PASSWORD", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	// WHEN: Loading
	cfg, err := config.Load(path, false)

	// THEN: File values, env overrides and column defaults all apply
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, sqlite.DriverPureGo, cfg.DB.Driver)
	assert.Equal(t, "/tmp/other.db", cfg.DB.Path)
	assert.Equal(t, "secret", cfg.Auth.AdminPassword)
	assert.Equal(t, "sk-env", cfg.Annotator.APIKey)
	assert.Equal(t, "Manager", cfg.Ingest.Columns.Manager)
	assert.Equal(t, "Return 1Y", cfg.Ingest.Columns.Returns[fund.Period1Y])
	assert.Equal(t, fund.DefaultSourceColumns().Returns[fund.Period3Y], cfg.Ingest.Columns.Returns[fund.Period3Y])
}

func TestLoad_UnknownReturnPeriod(t *testing.T) {
	path := writeConfig(t, `
ingest:
  columns:
    returns:
      7Y: "Return 7Y"
`)
	_, err := config.Load(path, false)
	assert.ErrorIs(t, err, fund.ErrUnknownPeriod)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.Error(t, err)
}
