package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon_spider/internal/models"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	t.Run("keeps markup and unicode verbatim", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		err := Encode(&buf, map[string]models.ResultRecord{
			"https://example.com/x?id=1": {HTML: "<p>Réduction & more</p>", Text: "Réduction & more"},
		})
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, `"https://example.com/x?id=1": {`)
		assert.Contains(t, out, `"html": "<p>Réduction & more</p>"`)
		assert.Contains(t, out, `"text": "Réduction & more"`)
	})

	t.Run("nil map is an empty object", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, nil))
		assert.Equal(t, "{}\n", buf.String())
	})
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "unredeemed_coupons.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	results := map[string]models.ResultRecord{
		"https://example.com/x?id=1": {HTML: "<b>a</b>", Text: "a"},
		"https://example.com/x?id=4": {HTML: "<b>d</b>", Text: "d"},
	}
	require.NoError(t, WriteJSON(path, results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]models.ResultRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, results, decoded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestWriteJSONMissingDir(t *testing.T) {
	t.Parallel()

	err := WriteJSON(filepath.Join(t.TempDir(), "missing", "out.json"), nil)
	assert.Error(t, err)
}
