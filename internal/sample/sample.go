// Package sample embeds demonstration datasets. They are only used when the
// sample fallback is explicitly enabled; real-data failures are never masked
// by default.
package sample

import (
	"embed"
	"encoding/json"
	"path"
	"sort"
	"strings"
)

//go:embed data/*.geojson
var files embed.FS

// For returns the sample dataset for a layer ID.
func For(id string) (json.RawMessage, bool) {
	data, err := files.ReadFile(path.Join("data", id+".geojson"))
	if err != nil {
		return nil, false
	}
	return json.RawMessage(data), true
}

// IDs lists the layers that have a sample.
func IDs() []string {
	entries, err := files.ReadDir("data")
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, strings.TrimSuffix(e.Name(), ".geojson"))
	}
	sort.Strings(ids)
	return ids
}
