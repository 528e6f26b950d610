package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"EXAMPLE.COM", "example.com"},
		{"www.example.com", "example.com"},
		{"https://example.com", "example.com"},
		{"http://www.example.com/", "example.com"},
		{"example.com/", "example.com"},
		{"news.example.co.uk", "news.example.co.uk"},
	}
	for _, tt := range tests {
		got, err := NormalizeDomain(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNormalizeDomainIdempotent(t *testing.T) {
	once, err := NormalizeDomain("HTTPS://WWW.Example.com/")
	require.NoError(t, err)
	twice, err := NormalizeDomain(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalizeDomainPunycode(t *testing.T) {
	got, err := NormalizeDomain("münchen.example")
	require.NoError(t, err)
	assert.Equal(t, "xn--mnchen-3ya.example", got)
}

func TestNormalizeDomainInvalid(t *testing.T) {
	for _, in := range []string{"", "https://", "not a domain", "nodots", "   "} {
		_, err := NormalizeDomain(in)
		require.Error(t, err, "%q", in)

		var ide *InvalidDomainError
		assert.ErrorAs(t, err, &ide, "%q", in)
	}
}
