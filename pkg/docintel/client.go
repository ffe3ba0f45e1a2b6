// Package docintel wraps the Azure Document Intelligence analyze API.
// Analysis is asynchronous: the service returns an Operation-Location that
// must be polled until the result is ready.
package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultAPIVersion   = "2024-02-29-preview"
	defaultModel        = "prebuilt-layout"
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 5 * time.Minute
)

// Client analyzes PDF documents into layout JSON.
type Client interface {
	// AnalyzeLayout submits pdfBytes for layout analysis and blocks until the
	// operation completes, returning the analyzeResult payload.
	AnalyzeLayout(ctx context.Context, pdfBytes []byte) (map[string]any, error)
}

type httpClient struct {
	endpoint     string
	key          string
	model        string
	apiVersion   string
	pollInterval time.Duration
	pollTimeout  time.Duration
	client       *http.Client
}

// Option configures the client.
type Option func(*httpClient)

// WithModel overrides the default prebuilt-layout model.
func WithModel(model string) Option {
	return func(c *httpClient) { c.model = model }
}

// WithPolling overrides the poll interval and overall poll timeout.
func WithPolling(interval, timeout time.Duration) Option {
	return func(c *httpClient) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if timeout > 0 {
			c.pollTimeout = timeout
		}
	}
}

// NewClient creates a Document Intelligence client.
func NewClient(endpoint, key string, opts ...Option) Client {
	c := &httpClient{
		endpoint:     endpoint,
		key:          key,
		model:        defaultModel,
		apiVersion:   defaultAPIVersion,
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
		client:       &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type analyzeStatus struct {
	Status        string         `json:"status"`
	AnalyzeResult map[string]any `json:"analyzeResult"`
	Error         *analyzeError  `json:"error"`
}

type analyzeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *httpClient) AnalyzeLayout(ctx context.Context, pdfBytes []byte) (map[string]any, error) {
	opURL, err := c.submit(ctx, pdfBytes)
	if err != nil {
		return nil, err
	}
	return c.poll(ctx, opURL)
}

func (c *httpClient) submit(ctx context.Context, pdfBytes []byte) (string, error) {
	u := c.endpoint + "/documentintelligence/documentModels/" + c.model +
		":analyze?api-version=" + c.apiVersion

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(pdfBytes))
	if err != nil {
		return "", eris.Wrap(err, "docintel: create analyze request")
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "docintel: submit analyze")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return "", eris.Errorf("docintel: analyze returned %d: %s", resp.StatusCode, string(body))
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", eris.New("docintel: missing Operation-Location header")
	}
	return opURL, nil
}

func (c *httpClient) poll(ctx context.Context, opURL string) (map[string]any, error) {
	deadline := time.Now().Add(c.pollTimeout)

	for {
		status, err := c.getStatus(ctx, opURL)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "succeeded":
			return status.AnalyzeResult, nil
		case "failed":
			if status.Error != nil {
				return nil, eris.Errorf("docintel: analysis failed: %s: %s", status.Error.Code, status.Error.Message)
			}
			return nil, eris.New("docintel: analysis failed")
		}

		if time.Now().After(deadline) {
			return nil, eris.Errorf("docintel: analysis did not complete within %s", c.pollTimeout)
		}

		zap.L().Debug("docintel: analysis in progress", zap.String("status", status.Status))

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, eris.Wrap(ctx.Err(), "docintel: poll canceled")
		case <-timer.C:
		}
	}
}

func (c *httpClient) getStatus(ctx context.Context, opURL string) (*analyzeStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "docintel: create poll request")
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "docintel: poll operation")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "docintel: read poll response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("docintel: poll returned %d: %s", resp.StatusCode, string(body))
	}

	var status analyzeStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, eris.Wrap(err, "docintel: unmarshal poll response")
	}
	return &status, nil
}
