// Package harvest fetches loan PDFs from the internal Harvest file proxy,
// which exposes network-share files by UNC path.
package harvest

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultTimeout = 60 * time.Second

// Client fetches PDF bytes for UNC paths.
type Client interface {
	FetchPDF(ctx context.Context, uncPath string) ([]byte, error)
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

// Option configures the client.
type Option func(*httpClient)

// WithTimeout overrides the default 60s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) { c.client.Timeout = d }
}

// WithInsecureTLS disables certificate verification. The Harvest proxy runs
// on an internal host with a self-signed certificate.
func WithInsecureTLS() Option {
	return func(c *httpClient) {
		c.client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}
	}
}

// NewClient creates a Harvest client for the given base URL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPDF downloads the PDF at the given UNC path. The path is URL-encoded
// whole, including backslashes, as the proxy expects.
func (c *httpClient) FetchPDF(ctx context.Context, uncPath string) ([]byte, error) {
	if uncPath == "" {
		return nil, eris.New("harvest: empty UNC path")
	}

	u := c.baseURL + "/pdf/" + url.PathEscape(uncPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "harvest: create request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "harvest: fetch %s", uncPath)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("harvest: API returned %d for %s", resp.StatusCode, uncPath)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "harvest: read response body")
	}
	return data, nil
}
