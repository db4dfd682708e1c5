package upstream

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client issues validated chat requests to the model provider. Unary calls
// carry a full request timeout; streaming calls bound only the time to first
// byte, since a long generation is legitimate once tokens are flowing.
type Client struct {
	baseURL      string
	apiVersion   string
	creds        *Credentials
	unaryClient  *http.Client
	streamClient *http.Client
}

// NewClient creates an upstream client.
func NewClient(baseURL, apiVersion string, creds *Credentials, requestTimeout, firstByteTimeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiVersion: apiVersion,
		creds:      creds,
		unaryClient: &http.Client{
			Timeout: requestTimeout,
		},
		streamClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: firstByteTimeout,
				ForceAttemptHTTP2:     true,
			},
		},
	}
}

// UnaryURL builds the provider endpoint for a single-document response.
func (c *Client) UnaryURL(model string) string {
	return fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
}

// StreamURL builds the provider endpoint for an SSE response.
func (c *Client) StreamURL(model string) string {
	return fmt.Sprintf("%s/%s/models/%s:streamGenerateContent?alt=sse", c.baseURL, c.apiVersion, model)
}

// Generate issues a unary request. The response is returned as-is, including
// non-2xx statuses: the caller owns the status mapping and the body.
func (c *Client) Generate(ctx context.Context, model string, payload []byte) (*http.Response, error) {
	return c.send(ctx, c.unaryClient, c.UnaryURL(model), payload)
}

// Stream issues a streaming request. The caller must close the response body,
// which aborts the upstream read when the client side goes away.
func (c *Client) Stream(ctx context.Context, model string, payload []byte) (*http.Response, error) {
	return c.send(ctx, c.streamClient, c.StreamURL(model), payload)
}

func (c *Client) send(ctx context.Context, client *http.Client, url string, payload []byte) (*http.Response, error) {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain provider credential: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}

	// A rejected credential should trigger a fresh mint on the next use,
	// not poison every following request for the rest of the hour.
	if resp.StatusCode == http.StatusUnauthorized {
		c.creds.Invalidate()
	}

	return resp, nil
}
