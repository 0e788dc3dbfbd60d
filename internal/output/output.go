// Package output serialises a run's accepted records as one JSON object
// keyed by URL.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"coupon_spider/internal/models"
)

// Encode writes results as indented JSON. HTML escaping is off so markup
// and non-ASCII text are stored verbatim.
func Encode(w io.Writer, results map[string]models.ResultRecord) error {
	if results == nil {
		results = map[string]models.ResultRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// WriteJSON replaces path with the encoded results. The file is written to
// a temporary sibling first and renamed into place.
func WriteJSON(path string, results map[string]models.ResultRecord) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Encode(tmp, results); err != nil {
		tmp.Close()
		return fmt.Errorf("encode results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
