//go:build integration

// Integration test against a running server: go run ./cmd/floodmap
//
// Run: go test -tags=integration ./internal/server/
package server_test

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"
)

func baseURL() string {
	if u := os.Getenv("FLOOD_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8086"
}

func getJSON(t *testing.T, path string, v any) {
	t.Helper()
	resp, err := http.Get(baseURL() + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s: status=%d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	var body struct{ Status string }
	getJSON(t, "/health", &body)
	if body.Status != "ok" {
		t.Fatalf("status=%q, want ok", body.Status)
	}
}

func TestGetInfo(t *testing.T) {
	var body struct{ Name string }
	getJSON(t, "/api/v1/info", &body)
	if body.Name != "plat-flood" {
		t.Fatalf("name=%q, want plat-flood", body.Name)
	}
}

func TestMapDocument(t *testing.T) {
	var doc struct{ Renderer string }
	getJSON(t, "/api/v1/map", &doc)
	if doc.Renderer == "" {
		t.Fatal("missing renderer")
	}
}
