package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"marketpilot/platform/apperr"
	"marketpilot/platform/config"
	"marketpilot/platform/logger"

	"golang.org/x/time/rate"
)

const (
	sessionCookie  = "golden_key"
	requestTimeout = 30 * time.Second
	lotsCacheTTL   = 10 * time.Minute
	localeCacheTTL = 24 * time.Hour
)

// Client is the authenticated marketplace session. All methods are safe for
// concurrent use; outbound chat messages share one rate limiter so bursts of
// simultaneous orders cannot trip the platform's flood protection.
type Client struct {
	http       *http.Client
	baseURL    string
	sessionKey string
	userAgent  string
	pollDelay  time.Duration
	limiter    *rate.Limiter
	log        *logger.Logger

	mu      sync.RWMutex
	account AccountInfo
	cursor  string
	lots    map[int64]cacheEntry[[]Lot]
	locales map[string]cacheEntry[string]
}

// NewClient builds a client from configuration. Call Refresh before using
// any method that needs the account identity or CSRF token.
func NewClient(cfg config.MarketplaceConfig, log *logger.Logger) *Client {
	return &Client{
		http:       &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(cfg.GetMarketplaceBaseURL(), "/"),
		sessionKey: cfg.GetMarketplaceSessionKey(),
		userAgent:  cfg.GetMarketplaceUserAgent(),
		pollDelay:  cfg.GetEventPollDelay(),
		limiter:    rate.NewLimiter(rate.Limit(cfg.GetOutboundMessageRate()), 1),
		log:        log,
		lots:       make(map[int64]cacheEntry[[]Lot]),
		locales:    make(map[string]cacheEntry[string]),
	}
}

// Account returns the identity resolved by the last Refresh.
func (c *Client) Account() AccountInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

// Refresh loads the main page and stores the session identity. It doubles as
// the online heartbeat: the platform counts any authenticated page load as
// seller activity.
func (c *Client) Refresh(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := parseAppData(resp.Body)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	if data.UserID == 0 {
		return apperr.Unauthorized("marketplace session expired")
	}

	c.mu.Lock()
	c.account = AccountInfo{
		UserID:   data.UserID,
		Username: data.Username,
		Locale:   data.Locale,
		CSRF:     data.CSRFToken,
	}
	c.mu.Unlock()
	return nil
}

// runnerResponse is the poll endpoint's payload.
type runnerResponse struct {
	Tag    string  `json:"tag"`
	Events []Event `json:"events"`
}

// Poll fetches the events accumulated since the last poll.
func (c *Client) Poll(ctx context.Context) ([]Event, error) {
	c.mu.RLock()
	cursor := c.cursor
	c.mu.RUnlock()

	form := url.Values{"tag": {cursor}}
	resp, err := c.do(ctx, http.MethodPost, "/runner/", form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload runnerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode runner response: %w", err)
	}

	c.mu.Lock()
	c.cursor = payload.Tag
	c.mu.Unlock()
	return payload.Events, nil
}

// Listen polls the runner until the context is cancelled and delivers events
// on the returned channel. Poll failures are logged and retried after the
// normal delay; a dead marketplace must not kill the engine.
func (c *Client) Listen(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		ticker := time.NewTicker(c.pollDelay)
		defer ticker.Stop()
		for {
			events, err := c.Poll(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.MarketplaceError("poll", err)
			}
			for _, ev := range events {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// SendMessage posts a chat message, waiting on the shared rate limiter first.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	form := url.Values{
		"chat_id":    {chatID},
		"text":       {text},
		"csrf_token": {c.Account().CSRF},
	}
	resp, err := c.do(ctx, http.MethodPost, "/chat/send", form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// salesPage is one page of the sales ledger.
type salesPage struct {
	Orders  []OrderSummary `json:"orders"`
	HasMore bool           `json:"has_more"`
}

// ListSales walks the sales ledger for the given state and returns every
// order. Pagination is followed to the end so reconciliation sees the full
// history, not just the first page.
func (c *Client) ListSales(ctx context.Context, state OrderState) ([]OrderSummary, error) {
	var all []OrderSummary
	for page := 1; ; page++ {
		resp, err := c.do(ctx, http.MethodGet,
			"/orders/trade?state="+url.QueryEscape(string(state))+"&page="+strconv.Itoa(page), nil)
		if err != nil {
			return nil, err
		}
		var payload salesPage
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode sales page %d: %w", page, err)
		}
		all = append(all, payload.Orders...)
		if !payload.HasMore {
			return all, nil
		}
	}
}

// ChatLocale returns the buyer's interface language for a conversation
// (ru, en or uk), or empty when the platform doesn't expose one. Results are
// cached; buyers don't switch interface language mid-order.
func (c *Client) ChatLocale(ctx context.Context, chatID string) (string, error) {
	now := time.Now()
	c.mu.RLock()
	entry, ok := c.locales[chatID]
	c.mu.RUnlock()
	if ok && entry.valid(now) {
		return entry.value, nil
	}

	resp, err := c.do(ctx, http.MethodGet, "/chat/?node="+url.QueryEscape(chatID), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	locale, err := parseChatLocale(resp.Body)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.locales[chatID] = cacheEntry[string]{value: locale, expires: now.Add(localeCacheTTL)}
	c.mu.Unlock()
	return locale, nil
}

// SellerRating reads the seller's current public rating.
func (c *Client) SellerRating(ctx context.Context) (Rating, error) {
	account := c.Account()
	if account.UserID == 0 {
		return Rating{}, apperr.Unauthorized("session not refreshed")
	}
	resp, err := c.do(ctx, http.MethodGet, "/users/"+strconv.FormatInt(account.UserID, 10)+"/", nil)
	if err != nil {
		return Rating{}, err
	}
	defer resp.Body.Close()
	return parseSellerRating(resp.Body)
}

// Subcategories lists the lot sections where the seller has offers.
func (c *Client) Subcategories(ctx context.Context) ([]Subcategory, error) {
	resp, err := c.do(ctx, http.MethodGet, "/lots/sections", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Subcategories []Subcategory `json:"subcategories"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	return payload.Subcategories, nil
}

// SubcategoryLots lists the seller's own lots in a section, cached for a few
// minutes since bump scans run far more often than lots change.
func (c *Client) SubcategoryLots(ctx context.Context, subcategoryID int64) ([]Lot, error) {
	now := time.Now()
	c.mu.RLock()
	entry, ok := c.lots[subcategoryID]
	c.mu.RUnlock()
	if ok && entry.valid(now) {
		return entry.value, nil
	}

	resp, err := c.do(ctx, http.MethodGet, "/lots/"+strconv.FormatInt(subcategoryID, 10)+"/mine", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Lots []Lot `json:"lots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode lots: %w", err)
	}

	c.mu.Lock()
	c.lots[subcategoryID] = cacheEntry[[]Lot]{value: payload.Lots, expires: now.Add(lotsCacheTTL)}
	c.mu.Unlock()
	return payload.Lots, nil
}

// RaiseLots bumps the given sections to the top of their category listing.
func (c *Client) RaiseLots(ctx context.Context, categoryID int64, subcategoryIDs []int64) error {
	ids := make([]string, len(subcategoryIDs))
	for i, id := range subcategoryIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	form := url.Values{
		"category_id":    {strconv.FormatInt(categoryID, 10)},
		"subcategory_id": ids,
		"csrf_token":     {c.Account().CSRF},
	}
	resp, err := c.do(ctx, http.MethodPost, "/lots/raise", form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Refund returns the buyer's money for an order.
func (c *Client) Refund(ctx context.Context, orderID string) error {
	form := url.Values{
		"order_id":   {orderID},
		"csrf_token": {c.Account().CSRF},
	}
	resp, err := c.do(ctx, http.MethodPost, "/orders/refund", form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// do performs one authenticated request and fails on non-2xx statuses.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) (*http.Response, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.sessionKey})
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "marketplace unreachable", err)
	}
	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, apperr.Unauthorized("marketplace rejected session")
	case resp.StatusCode >= 400:
		resp.Body.Close()
		return nil, apperr.New(apperr.KindUnavailable, fmt.Sprintf("marketplace returned %d for %s", resp.StatusCode, path))
	}
	return resp, nil
}
