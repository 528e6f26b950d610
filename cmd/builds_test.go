package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trackless/cred1/internal/model"
)

func TestFormatBuildsList(t *testing.T) {
	created := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	builds := []model.Build{
		{
			ID:            "0195c5b2-1234-7890-abcd-ef0123456789",
			Status:        model.BuildStatusComplete,
			ReferenceDate: "2026-08-31",
			Result:        &model.BuildResult{Domains: 1024, OverlapCount: 87},
			CreatedAt:     created,
			UpdatedAt:     created.Add(42 * time.Second),
		},
		{
			ID:            "0195c5b2-9999-7890-abcd-ef0123456789",
			Status:        model.BuildStatusFailed,
			ReferenceDate: "2026-08-30",
			CreatedAt:     created,
			UpdatedAt:     created,
		},
	}

	var sb strings.Builder
	formatBuildsList(&sb, builds)
	out := sb.String()

	assert.Contains(t, out, "0195c5b2")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "1024")
	assert.Contains(t, out, "87")
	assert.Contains(t, out, "2026-08-31")
	assert.Contains(t, out, "failed")
	assert.NotContains(t, out, "ef0123456789")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "0195c5b2", truncateID("0195c5b2-1234-7890-abcd-ef0123456789"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestValidStep(t *testing.T) {
	for _, step := range []string{"tranco", "rdap", "factcheck", "safebrowsing", "score", "all"} {
		assert.True(t, validStep(step), step)
	}
	assert.False(t, validStep("bogus"))
	assert.False(t, validStep(""))
}
