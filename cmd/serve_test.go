package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackless/cred1/internal/dataset"
)

func testEntries() map[string]dataset.CompactEntry {
	rank := 3509
	return map[string]dataset.CompactEntry{
		"hoax.example":    {S: 0.0, C: "f", N: 2, R: &rank},
		"careful.example": {S: 0.99, C: "r", N: 1},
	}
}

func TestCheckRouterKnownDomain(t *testing.T) {
	srv := httptest.NewServer(newCheckRouter(testEntries()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/check/hoax.example")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Domain string               `json:"domain"`
		Rating dataset.CompactEntry `json:"rating"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "hoax.example", body.Domain)
	assert.Equal(t, "f", body.Rating.C)
	assert.Equal(t, 2, body.Rating.N)
	require.NotNil(t, body.Rating.R)
	assert.Equal(t, 3509, *body.Rating.R)
}

func TestCheckRouterNormalizesParam(t *testing.T) {
	srv := httptest.NewServer(newCheckRouter(testEntries()))
	defer srv.Close()

	// the www prefix is stripped before lookup
	resp, err := http.Get(srv.URL + "/v1/check/www.careful.example")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheckRouterUnratedDomain(t *testing.T) {
	srv := httptest.NewServer(newCheckRouter(testEntries()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/check/unknown.example")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "not rated", body["error"])
}

func TestCheckRouterInvalidDomain(t *testing.T) {
	srv := httptest.NewServer(newCheckRouter(testEntries()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/check/nodots")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckRouterHealth(t *testing.T) {
	srv := httptest.NewServer(newCheckRouter(testEntries()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status  string `json:"status"`
		Domains int    `json:"domains"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Domains)
}

func TestLoadCompactDataset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset_compact.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hoax.example":{"s":0,"c":"f","n":2}}`), 0o644))

	entries, err := loadCompactDataset(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f", entries["hoax.example"].C)
}

func TestLoadCompactDatasetMissingFile(t *testing.T) {
	_, err := loadCompactDataset(filepath.Join(t.TempDir(), "dataset_compact.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run build first")
}
