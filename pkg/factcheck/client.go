// Package factcheck wraps the Google Fact Check Tools claims:search API.
package factcheck

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/trackless/cred1/internal/resilience"
)

const (
	defaultBaseURL  = "https://factchecktools.googleapis.com/v1alpha1"
	defaultPageSize = 100
)

// ErrMissingAPIKey is returned by NewClient when no key is supplied.
var ErrMissingAPIKey = eris.New("factcheck: API key is required")

// Claim is a single fact-checked claim mentioning the queried domain.
type Claim struct {
	Text     string        `json:"text"`
	Claimant string        `json:"claimant,omitempty"`
	Reviews  []ClaimReview `json:"claimReview,omitempty"`
}

// ClaimReview is one publisher's review of a claim.
type ClaimReview struct {
	Publisher struct {
		Name string `json:"name"`
		Site string `json:"site"`
	} `json:"publisher"`
	URL          string `json:"url"`
	TextualRated string `json:"textualRating"`
}

// Client searches the fact-check corpus.
type Client interface {
	// Search returns claims mentioning the query, up to one page.
	Search(ctx context.Context, query string) ([]Claim, error)
	// ClaimCount returns how many claims mention the query.
	ClaimCount(ctx context.Context, query string) (int, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageSize overrides the claims page size.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		c.pageSize = n
	}
}

type httpClient struct {
	baseURL  string
	apiKey   string
	pageSize int
	http     *http.Client
}

// NewClient creates a fact-check client. The API key is required.
func NewClient(apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &httpClient{
		baseURL:  defaultBaseURL,
		apiKey:   apiKey,
		pageSize: defaultPageSize,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type searchResponse struct {
	Claims []Claim `json:"claims"`
}

func (c *httpClient) Search(ctx context.Context, query string) ([]Claim, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/claims:search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "factcheck: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "factcheck: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("factcheck: status %d for query %q", resp.StatusCode, query),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("factcheck: unexpected status %d for query %q", resp.StatusCode, query)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "factcheck: read response")
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "factcheck: unmarshal response")
	}
	return parsed.Claims, nil
}

func (c *httpClient) ClaimCount(ctx context.Context, query string) (int, error) {
	claims, err := c.Search(ctx, query)
	if err != nil {
		return 0, err
	}
	return len(claims), nil
}
