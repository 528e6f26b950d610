package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"news.example.com", "example.com"},
		{"a.b.news.example.com", "example.com"},
		{"bbc.co.uk", "bbc.co.uk"},
		{"news.bbc.co.uk", "bbc.co.uk"},
		{"smh.com.au", "smh.com.au"},
		{"blogs.smh.com.au", "smh.com.au"},
		{"localhost.localdomain", "localhost.localdomain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, RegistrableDomain(tt.in))
		})
	}
}
