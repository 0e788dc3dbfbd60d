package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon_spider/internal/config"
	"coupon_spider/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	assert.Equal(t, "coupon_spider", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	for _, name := range []string{
		"config", "base-url", "param", "start", "end", "workers", "retries",
		"retry-delay", "timeout", "delay-ms", "marker", "robots-url", "output", "verbose",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "5", cmd.Flags().Lookup("workers").DefValue)
	assert.Equal(t, config.DefaultOutputPath, cmd.Flags().Lookup("output").DefValue)
}

func TestResolveConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags without config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd()
		require.NoError(t, cmd.ParseFlags([]string{
			"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		}))
		_, err := resolveConfig(cmd, discardLogger())
		assert.ErrorIs(t, err, config.ErrConfigNotFound, "an explicit config path must exist")
	})

	t.Run("default config path may be absent", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd()
		require.NoError(t, cmd.ParseFlags([]string{
			"--base-url", "https://example.com/x",
			"--param", "id",
			"--start", "1",
			"--end", "3",
			"--workers", "2",
			"--retry-delay", "0",
		}))
		require.NoError(t, cmd.Flags().Set("config", filepath.Join(t.TempDir(), "config.yaml")))
		cmd.Flags().Lookup("config").Changed = false

		cfg, err := resolveConfig(cmd, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/x", cfg.Target.BaseURL)
		assert.Equal(t, "id", cfg.Target.Param)
		assert.Equal(t, 1, cfg.Target.Start)
		assert.Equal(t, 3, cfg.Target.End)
		assert.Equal(t, 2, cfg.Logic.MaxConcurrentWorkers)
		assert.Zero(t, cfg.Logic.RetryDelaySec)
		assert.Equal(t, config.DefaultMaxRetries, cfg.Logic.MaxRetries)
	})

	t.Run("flags override file values", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
target:
  base_url: https://example.com/x
  param: id
  start: 1
  end: 500
logic:
  max_concurrent_workers: 8
filter:
  exclusion_marker: used
`), 0o600))

		cmd := NewRootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--end", "10", "--marker", "gone"}))

		cfg, err := resolveConfig(cmd, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, 10, cfg.Target.End)
		assert.Equal(t, 8, cfg.Logic.MaxConcurrentWorkers, "unset flags keep file values")
		assert.Equal(t, "gone", cfg.Filter.ExclusionMarker)
	})

	t.Run("invalid range", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd()
		require.NoError(t, cmd.ParseFlags([]string{
			"--base-url", "https://example.com/x", "--param", "id", "--start", "9", "--end", "3",
		}))
		require.NoError(t, cmd.Flags().Set("config", filepath.Join(t.TempDir(), "config.yaml")))
		cmd.Flags().Lookup("config").Changed = false

		_, err := resolveConfig(cmd, discardLogger())
		assert.ErrorIs(t, err, config.ErrInvalidRange)
	})
}

func TestExecute(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/robots.txt":
			_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
		case r.URL.Query().Get("id") == "2":
			_, _ = w.Write([]byte("<p>This coupon has already been redeemed</p>"))
		case r.URL.Query().Get("id") == "3":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte("<p>Congratulations, valid coupon</p>"))
		}
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	out := filepath.Join(dir, "out.json")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{
		"--config", filepath.Join(dir, "config.yaml"),
		"--base-url", srv.URL + "/x",
		"--param", "id",
		"--start", "1",
		"--end", "3",
		"--workers", "2",
		"--retry-delay", "0",
		"--output", out,
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("output:\n  path: ignored.json\n"), 0o600))
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var got map[string]models.ResultRecord
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Congratulations, valid coupon", got[srv.URL+"/x?id=1"].Text)
}
