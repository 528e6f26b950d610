package factcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClaimCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/claims:search", r.URL.Path)
		assert.Equal(t, "example.com", r.URL.Query().Get("query"))
		assert.Equal(t, "100", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{
			"claims": [
				{"text": "claim one", "claimReview": [{"textualRating": "False"}]},
				{"text": "claim two"}
			]
		}`))
	}))
	defer srv.Close()

	c, err := NewClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	n, err := c.ClaimCount(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSearchEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	claims, err := c.Search(context.Background(), "quiet-domain.example")
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := NewClient("bad-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "example.com")
	assert.Error(t, err)
}
