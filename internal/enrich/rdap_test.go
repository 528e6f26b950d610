package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackless/cred1/internal/model"
	"github.com/trackless/cred1/pkg/rdap"
)

type fakeRDAP struct {
	registrations map[string]string
	calls         map[string]int
}

func (f *fakeRDAP) Lookup(ctx context.Context, domain string) (*rdap.Registration, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[domain]++
	reg, ok := f.registrations[domain]
	if !ok {
		return nil, rdap.ErrNotFound
	}
	return &rdap.Registration{Registered: reg}, nil
}

func refDate(t *testing.T) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", "2026-08-31")
	require.NoError(t, err)
	return d
}

func TestAgeEnricherComputesAge(t *testing.T) {
	client := &fakeRDAP{registrations: map[string]string{
		"example.com": "2006-08-31T00:00:00Z",
	}}
	e := NewAgeEnricher(client, nil, refDate(t))

	rec := &model.DomainRecord{Domain: "example.com", Category: model.CategoryMixed}
	stats, err := e.Enrich(context.Background(), []*model.DomainRecord{rec}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Enriched)

	age, ok := rec.DomainAgeYears.Get()
	require.True(t, ok)
	assert.InDelta(t, 20.0, age, 0.05)

	registered, ok := rec.DomainRegistered.Get()
	require.True(t, ok)
	assert.Equal(t, "2006-08-31", registered)
}

func TestAgeEnricherQueriesRegistrableDomain(t *testing.T) {
	client := &fakeRDAP{registrations: map[string]string{
		"example.com": "2010-01-01T00:00:00Z",
	}}
	e := NewAgeEnricher(client, nil, refDate(t))

	rec := &model.DomainRecord{Domain: "news.example.com"}
	_, err := e.Enrich(context.Background(), []*model.DomainRecord{rec}, 0)
	require.NoError(t, err)

	assert.True(t, rec.DomainAgeYears.Present())
	assert.Equal(t, 1, client.calls["example.com"])
	assert.Zero(t, client.calls["news.example.com"])
}

func TestAgeEnricherNotFoundLeavesAbsent(t *testing.T) {
	e := NewAgeEnricher(&fakeRDAP{}, nil, refDate(t))

	rec := &model.DomainRecord{Domain: "unregistered.example"}
	stats, err := e.Enrich(context.Background(), []*model.DomainRecord{rec}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.False(t, rec.DomainAgeYears.Present())
}

func TestAgeEnricherFutureRegistrationClampsToZero(t *testing.T) {
	client := &fakeRDAP{registrations: map[string]string{
		"brandnew.example": "2027-01-01T00:00:00Z",
	}}
	e := NewAgeEnricher(client, nil, refDate(t))

	rec := &model.DomainRecord{Domain: "brandnew.example"}
	_, err := e.Enrich(context.Background(), []*model.DomainRecord{rec}, 0)
	require.NoError(t, err)

	age, ok := rec.DomainAgeYears.Get()
	require.True(t, ok)
	assert.Equal(t, 0.0, age)
}

func TestAgeEnricherHonorsLimit(t *testing.T) {
	client := &fakeRDAP{registrations: map[string]string{
		"a.example": "2010-01-01T00:00:00Z",
		"b.example": "2010-01-01T00:00:00Z",
	}}
	e := NewAgeEnricher(client, nil, refDate(t))

	recs := []*model.DomainRecord{
		{Domain: "a.example"},
		{Domain: "b.example"},
	}
	stats, err := e.Enrich(context.Background(), recs, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
}

type failingRDAP struct{}

func (failingRDAP) Lookup(ctx context.Context, domain string) (*rdap.Registration, error) {
	return nil, eris.New("rdap: lookup rejected")
}

func TestAgeEnricherLookupFailureDoesNotAbort(t *testing.T) {
	e := NewAgeEnricher(failingRDAP{}, nil, refDate(t))

	recs := []*model.DomainRecord{
		{Domain: "a.example"},
		{Domain: "b.example"},
	}
	stats, err := e.Enrich(context.Background(), recs, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Skipped)
}
