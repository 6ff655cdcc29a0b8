package partner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ExchangeResult is what a full credential exchange yields: the partner's
// current-user payload and the normalized deal list.
type ExchangeResult struct {
	User  map[string]interface{}
	Deals []Deal
}

// Exchange runs the whole pipeline against the partner site: authenticate,
// verify the session is actually usable, then fetch and normalize deals.
// Login and verification failures are fail-fast; deal fetching is fail-soft
// and can only shrink the deal list, never abort the exchange.
func (c *Client) Exchange(ctx context.Context, username, password string) (*ExchangeResult, error) {
	if err := c.Login(ctx, username, password); err != nil {
		return nil, err
	}
	user, err := c.VerifySession(ctx)
	if err != nil {
		return nil, err
	}
	deals := c.FetchDeals(ctx)
	c.logger.Printf("deals fetched - website: %s, count: %d", c.websiteID, len(deals))
	return &ExchangeResult{User: user, Deals: deals}, nil
}

// Login posts credentials to the partner login endpoint. On success the
// client's cookie jar holds an authenticated partner session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": username, "password": password}).
		Post(c.apiBase + "/login")
	if err != nil {
		c.logger.Printf("login request failed - website: %s, error: %v", c.websiteID, err)
		return fmt.Errorf("%w: %v", ErrSiteUnavailable, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		c.logger.Printf("login successful - website: %s, cookies: %d", c.websiteID, len(resp.Cookies()))
		return nil
	case http.StatusUnauthorized:
		c.logger.Printf("login rejected - website: %s, status: 401", c.websiteID)
		return ErrBadCredentials
	default:
		c.logger.Printf("login failed - website: %s, status: %d, body: %s",
			c.websiteID, resp.StatusCode(), truncate(resp.String(), 200))
		return fmt.Errorf("%w (status %d)", ErrBadCredentials, resp.StatusCode())
	}
}

// VerifySession confirms the established session is usable. A 200 from login
// does not guarantee the cookie works for API calls on every partner
// deployment, so this is the real gate before trusting the session. Returns
// the partner's current-user payload as-is.
func (c *Client) VerifySession(ctx context.Context) (map[string]interface{}, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		Get(c.apiBase + "/users/session")
	if err != nil {
		c.logger.Printf("session verification request failed - website: %s, error: %v", c.websiteID, err)
		return nil, fmt.Errorf("%w: %v", ErrSiteUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		c.logger.Printf("session verification failed - website: %s, status: %d", c.websiteID, resp.StatusCode())
		return nil, ErrSessionVerification
	}

	var user map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &user); err != nil {
		c.logger.Printf("session payload unreadable - website: %s, error: %v", c.websiteID, err)
		return nil, ErrSessionVerification
	}
	c.logger.Printf("session verified - website: %s", c.websiteID)
	return user, nil
}

// FetchDeals queries both deal endpoints and merges their normalized
// results, list endpoint first. A failure on either endpoint (transport,
// status, parse) logs a warning and contributes zero deals; it never aborts
// the other endpoint or the exchange.
func (c *Client) FetchDeals(ctx context.Context) []Deal {
	var deals []Deal
	for _, endpoint := range []string{"deals-list", "deals-cards"} {
		deals = append(deals, c.fetchDealsEndpoint(ctx, endpoint)...)
	}
	return dedupeDeals(deals)
}

func (c *Client) fetchDealsEndpoint(ctx context.Context, endpoint string) []Deal {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{}).
		Post(c.apiBase + "/" + endpoint)
	if err != nil {
		c.logger.Printf("%s request failed - website: %s, error: %v", endpoint, c.websiteID, err)
		return nil
	}
	if resp.StatusCode() != http.StatusOK {
		c.logger.Printf("%s returned status %d - website: %s", endpoint, resp.StatusCode(), c.websiteID)
		return nil
	}

	var payload interface{}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		c.logger.Printf("failed to parse %s response - website: %s, error: %v", endpoint, c.websiteID, err)
		return nil
	}
	return normalizeDeals(extractDeals(payload))
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opts.ReadTimeout)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
