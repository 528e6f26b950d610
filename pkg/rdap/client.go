// Package rdap queries the rdap.org aggregator for domain registration data.
package rdap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/trackless/cred1/internal/resilience"
)

const defaultBaseURL = "https://rdap.org/domain/"

// ErrNotFound is returned when the registry has no record for the domain.
var ErrNotFound = eris.New("rdap: domain not found")

// Registration holds the event dates extracted from an RDAP response.
type Registration struct {
	Registered string `json:"registered,omitempty"`
	Updated    string `json:"updated,omitempty"`
	Expires    string `json:"expires,omitempty"`
}

// RegisteredTime parses the registration timestamp.
func (r *Registration) RegisteredTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, r.Registered)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "rdap: parse registration date %q", r.Registered)
	}
	return t, nil
}

// Client performs RDAP domain lookups.
type Client interface {
	Lookup(ctx context.Context, domain string) (*Registration, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default aggregator URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient creates an RDAP client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   defaultBaseURL,
		userAgent: "cred1/1.0 (research)",
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type rdapResponse struct {
	Events []rdapEvent `json:"events"`
}

type rdapEvent struct {
	Action string `json:"eventAction"`
	Date   string `json:"eventDate"`
}

// Lookup fetches the RDAP record for a registrable domain and extracts its
// registration, last-changed, and expiration events. Returns ErrNotFound
// for unregistered or unserved domains, and a transient error for statuses
// worth retrying.
func (c *httpClient) Lookup(ctx context.Context, domain string) (*Registration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+domain, nil)
	if err != nil {
		return nil, eris.Wrap(err, "rdap: create request")
	}
	req.Header.Set("Accept", "application/rdap+json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "rdap: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("rdap: status %d for %s", resp.StatusCode, domain),
			resp.StatusCode,
		)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("rdap: unexpected status %d for %s", resp.StatusCode, domain)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "rdap: read response")
	}

	var parsed rdapResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "rdap: unmarshal response")
	}

	reg := &Registration{}
	for _, ev := range parsed.Events {
		if ev.Date == "" {
			continue
		}
		switch ev.Action {
		case "registration":
			reg.Registered = ev.Date
		case "last changed":
			reg.Updated = ev.Date
		case "expiration":
			reg.Expires = ev.Date
		}
	}

	if reg.Registered == "" && reg.Updated == "" && reg.Expires == "" {
		return nil, ErrNotFound
	}
	return reg, nil
}
