// Package auth verifies opaque bearer tokens against the identity provider
// and fails closed: every failure mode collapses into the same "invalid
// session" answer so token validity cannot be probed.
package auth

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidSession is the single error returned for every authentication
// failure: missing token, expired token, provider unreachable.
var ErrInvalidSession = errors.New("invalid session")

const (
	sessionCacheTTL       = 5 * time.Minute
	sessionCacheKeyPrefix = "mentor:session:"
)

// Gate authenticates bearer tokens via the identity provider's introspection
// endpoint, with an optional Redis read-through cache of verified sessions.
type Gate struct {
	introspectionURL string
	clientSecret     string
	client           *http.Client
	redis            *redis.Client
}

// NewGate creates a Gate. rdb may be nil to disable the session cache.
func NewGate(introspectionURL, clientSecret string, timeout time.Duration, rdb *redis.Client) *Gate {
	return &Gate{
		introspectionURL: introspectionURL,
		clientSecret:     clientSecret,
		client:           &http.Client{Timeout: timeout},
		redis:            rdb,
	}
}

type introspectionResponse struct {
	Active  bool   `json:"active"`
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
}

// Authenticate verifies a bearer token and returns the caller identity, or
// ErrInvalidSession. The cause is logged, never returned.
func (g *Gate) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	cacheKey := sessionCacheKeyPrefix + hashToken(token)

	if g.redis != nil {
		cached, err := g.redis.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var id Identity
			if err := json.Unmarshal(cached, &id); err == nil {
				return &id, nil
			}
		}
	}

	id, err := g.introspect(ctx, token)
	if err != nil {
		slog.Warn("authentication failed", "error", err)
		return nil, ErrInvalidSession
	}

	if g.redis != nil {
		if data, err := json.Marshal(id); err == nil {
			g.redis.Set(ctx, cacheKey, data, sessionCacheTTL)
		}
	}

	return id, nil
}

func (g *Gate) introspect(ctx context.Context, token string) (*Identity, error) {
	form := url.Values{}
	form.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.introspectionURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if g.clientSecret != "" {
		req.Header.Set("Authorization", "Bearer "+g.clientSecret)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("introspection call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("introspection status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read introspection response: %w", err)
	}

	var ir introspectionResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return nil, fmt.Errorf("parse introspection response: %w", err)
	}
	if !ir.Active || ir.Subject == "" {
		return nil, fmt.Errorf("token not active")
	}

	return &Identity{Subject: ir.Subject, Email: ir.Email}, nil
}

// hashToken returns the SHA-256 hex digest of a token. Raw tokens never reach
// Redis or the logs.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
