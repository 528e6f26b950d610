// Package safebrowsing wraps the Google Safe Browsing v4 threatMatches API.
package safebrowsing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/trackless/cred1/internal/resilience"
)

const (
	defaultBaseURL = "https://safebrowsing.googleapis.com/v4"

	// maxBatchSize is the API limit on threat entries per request.
	maxBatchSize = 500
)

// ErrMissingAPIKey is returned by NewClient when no key is supplied.
var ErrMissingAPIKey = eris.New("safebrowsing: API key is required")

// threatTypes are the threat categories that count as a flag.
var threatTypes = []string{
	"MALWARE",
	"SOCIAL_ENGINEERING",
	"UNWANTED_SOFTWARE",
	"POTENTIALLY_HARMFUL_APPLICATION",
}

// Client checks domains against Safe Browsing threat lists.
type Client interface {
	// CheckDomains returns the set of input domains with at least one
	// threat match. Batching to the API limit happens internally.
	CheckDomains(ctx context.Context, domains []string) (map[string]bool, error)
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

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a Safe Browsing client. The API key is required.
func NewClient(apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &httpClient{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type findRequest struct {
	Client     clientInfo `json:"client"`
	ThreatInfo threatInfo `json:"threatInfo"`
}

type clientInfo struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type threatInfo struct {
	ThreatTypes      []string      `json:"threatTypes"`
	PlatformTypes    []string      `json:"platformTypes"`
	ThreatEntryTypes []string      `json:"threatEntryTypes"`
	ThreatEntries    []threatEntry `json:"threatEntries"`
}

type threatEntry struct {
	URL string `json:"url"`
}

type findResponse struct {
	Matches []struct {
		ThreatType string `json:"threatType"`
		Threat     struct {
			URL string `json:"url"`
		} `json:"threat"`
	} `json:"matches"`
}

func (c *httpClient) CheckDomains(ctx context.Context, domains []string) (map[string]bool, error) {
	flagged := make(map[string]bool)
	for start := 0; start < len(domains); start += maxBatchSize {
		end := min(start+maxBatchSize, len(domains))
		if err := c.checkBatch(ctx, domains[start:end], flagged); err != nil {
			return nil, err
		}
	}
	return flagged, nil
}

func (c *httpClient) checkBatch(ctx context.Context, domains []string, flagged map[string]bool) error {
	entries := make([]threatEntry, len(domains))
	for i, d := range domains {
		entries[i] = threatEntry{URL: "http://" + d + "/"}
	}

	payload := findRequest{
		Client: clientInfo{ClientID: "cred1", ClientVersion: "1.0"},
		ThreatInfo: threatInfo{
			ThreatTypes:      threatTypes,
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    entries,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "safebrowsing: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/threatMatches:find?key="+c.apiKey, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "safebrowsing: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "safebrowsing: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(
			eris.Errorf("safebrowsing: status %d", resp.StatusCode),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("safebrowsing: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "safebrowsing: read response")
	}

	var parsed findResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return eris.Wrap(err, "safebrowsing: unmarshal response")
	}

	for _, m := range parsed.Matches {
		flagged[domainFromURL(m.Threat.URL)] = true
	}
	return nil
}

// domainFromURL undoes the URL form sent in threat entries.
func domainFromURL(u string) string {
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	return strings.TrimSuffix(u, "/")
}
