package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon_spider/internal/models"
)

func TestSpiderAppRun(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/robots.txt":
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Query().Get("jiocpn") == "2":
			_, _ = w.Write([]byte("<p>This coupon has already been redeemed</p>"))
		default:
			_, _ = w.Write([]byte("<p>Congratulations</p>"))
		}
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL+"/JioMart/", 1, 3, 2)
	cfg.Target.Param = "jiocpn"
	cfg.Output.Path = filepath.Join(t.TempDir(), "unredeemed_coupons.json")

	a, err := NewSpiderApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	data, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)

	var got map[string]models.ResultRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Len(t, got, 2)
	assert.Equal(t, "Congratulations", got[srv.URL+"/JioMart/?jiocpn=1"].Text)
	assert.Equal(t, "<p>Congratulations</p>", got[srv.URL+"/JioMart/?jiocpn=3"].HTML)
}

func TestNewSpiderAppInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig("https://example.com/x", 3, 1, 2)
	_, err := NewSpiderApp(context.Background(), cfg, nil)
	assert.Error(t, err)
}
