// Package upstream talks to the model provider: it mints and caches the
// short-lived provider credential and issues the forwarded unary and
// streaming requests.
package upstream

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	assertionLifetime = time.Hour

	// refreshSkew is how long before expiry a cached token stops being
	// served. Minting well ahead of the deadline keeps in-flight requests
	// off an expired credential.
	refreshSkew = 5 * time.Minute

	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// Credentials mints provider bearer tokens from a signed service assertion
// and caches the result process-wide. Reads are lock-cheap; refresh is
// single-flighted so concurrent expiry observers mint exactly one token.
type Credentials struct {
	tokenURL       string
	serviceAccount string
	scope          string
	key            *rsa.PrivateKey
	client         *http.Client
	now            func() time.Time
	onRefresh      func(outcome string)

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// NewCredentials creates a credential minter.
func NewCredentials(tokenURL, serviceAccount, scope string, key *rsa.PrivateKey, client *http.Client) *Credentials {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Credentials{
		tokenURL:       tokenURL,
		serviceAccount: serviceAccount,
		scope:          scope,
		key:            key,
		client:         client,
		now:            time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (c *Credentials) WithClock(now func() time.Time) *Credentials {
	c.now = now
	return c
}

// WithRefreshObserver registers a callback fired once per mint attempt with
// its outcome ("success" or "error"). Set before the first Token call.
func (c *Credentials) WithRefreshObserver(fn func(outcome string)) *Credentials {
	c.onRefresh = fn
	return c
}

func (c *Credentials) observeRefresh(outcome string) {
	if c.onRefresh != nil {
		c.onRefresh(outcome)
	}
}

// Token returns a valid provider bearer token, minting a fresh one when the
// cached token is within the refresh skew of its expiry.
func (c *Credentials) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	v, err, _ := c.group.Do("mint", func() (interface{}, error) {
		// A concurrent caller may have refreshed while we queued.
		if token, ok := c.cached(); ok {
			return token, nil
		}
		token, err := c.mint(ctx)
		if err != nil {
			c.observeRefresh("error")
			return nil, err
		}
		c.observeRefresh("success")
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next call mints a fresh one. Used
// when the provider rejects a credential mid-lifetime.
func (c *Credentials) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Credentials) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return "", false
	}
	if c.now().After(c.expiresAt.Add(-refreshSkew)) {
		return "", false
	}
	return c.token, true
}

func (c *Credentials) mint(ctx context.Context) (string, error) {
	assertion, err := c.signAssertion()
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}

	c.mu.Lock()
	c.token = tr.AccessToken
	c.expiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	c.mu.Unlock()

	return tr.AccessToken, nil
}

func (c *Credentials) signAssertion() (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"iss":   c.serviceAccount,
		"scope": c.scope,
		"aud":   c.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.key)
}
