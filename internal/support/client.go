// Package support files tickets with the marketplace's support desk. The
// desk is a separate host behind an SSO handshake: the marketplace session
// is exchanged for a short-lived JWT, which the desk trades for its own
// session cookie before a ticket form can be submitted.
package support

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"marketpilot/platform/apperr"
	"marketpilot/platform/config"
	"marketpilot/platform/logger"

	"golang.org/x/net/html"
)

const (
	defaultSubject = "Order completion assistance"
	attempts       = 3
	retryBackoff   = 2 * time.Second
)

// Client is an authenticated support desk session.
type Client struct {
	// follow keeps the desk's session cookies across the SSO redirect chain;
	// noFollow captures the marketplace's 302 so the JWT can be read from
	// the Location header.
	follow   *http.Client
	noFollow *http.Client

	marketBaseURL  string
	supportBaseURL string
	sessionKey     string
	userAgent      string
	backoff        time.Duration
	log            *logger.Logger
}

// NewClient builds a support client from configuration.
func NewClient(cfg config.MarketplaceConfig, log *logger.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		follow: &http.Client{Jar: jar, Timeout: 30 * time.Second},
		noFollow: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		marketBaseURL:  strings.TrimRight(cfg.GetMarketplaceBaseURL(), "/"),
		supportBaseURL: strings.TrimRight(cfg.GetSupportBaseURL(), "/"),
		sessionKey:     cfg.GetMarketplaceSessionKey(),
		userAgent:      cfg.GetMarketplaceUserAgent(),
		backoff:        retryBackoff,
		log:            log,
	}, nil
}

// FileTicket submits a ticket with the given body, retrying the whole
// handshake on failure. The desk invalidates sessions aggressively, so a
// failed attempt always starts over from the SSO exchange.
func (c *Client) FileTicket(ctx context.Context, body string) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = c.fileOnce(ctx, body)
		if lastErr == nil {
			return nil
		}
		c.log.Error("filing support ticket failed", "attempt", attempt, "error", lastErr)
		if attempt < attempts {
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("filing support ticket: %w", lastErr)
}

func (c *Client) fileOnce(ctx context.Context, body string) error {
	token, err := c.ssoToken(ctx)
	if err != nil {
		return err
	}
	if err := c.openDeskSession(ctx, token); err != nil {
		return err
	}
	csrf, err := c.ticketFormToken(ctx)
	if err != nil {
		return err
	}
	return c.submitTicket(ctx, csrf, body)
}

// ssoToken asks the marketplace for a support desk JWT. The marketplace
// answers with a redirect whose Location carries the token.
func (c *Client) ssoToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.marketBaseURL+"/support/sso", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.AddCookie(&http.Cookie{Name: "golden_key", Value: c.sessionKey})

	resp, err := c.noFollow.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "sso handshake failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return "", apperr.New(apperr.KindUnavailable,
			fmt.Sprintf("sso endpoint returned %d instead of a redirect", resp.StatusCode))
	}

	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		return "", fmt.Errorf("parse sso redirect: %w", err)
	}
	for _, param := range []string{"jwt", "access"} {
		if token := location.Query().Get(param); token != "" {
			return token, nil
		}
	}
	return "", apperr.Unauthorized("sso redirect carried no token")
}

// openDeskSession trades the JWT for the desk's own session cookie.
func (c *Client) openDeskSession(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.supportBaseURL+"/sso?jwt="+url.QueryEscape(token), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.follow.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "desk session failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return apperr.New(apperr.KindUnavailable,
			fmt.Sprintf("desk sso returned %d", resp.StatusCode))
	}
	return nil
}

// ticketFormToken loads the new-ticket form and extracts its CSRF token.
func (c *Client) ticketFormToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.supportBaseURL+"/tickets/new", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.follow.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "loading ticket form failed", err)
	}
	defer resp.Body.Close()

	token, err := parseFormToken(resp.Body)
	if err != nil {
		return "", err
	}
	return token, nil
}

var errNoFormToken = errors.New("ticket form has no csrf token")

// parseFormToken finds the hidden ticket__token input, falling back to any
// element carrying a data-csrf-token attribute.
func parseFormToken(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var fallback string
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode {
			if n.Data == "input" && nodeAttr(n, "id") == "ticket__token" {
				found = nodeAttr(n, "value")
				return
			}
			if v := nodeAttr(n, "data-csrf-token"); v != "" && fallback == "" {
				fallback = v
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if found != "" {
		return found, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", errNoFormToken
}

func (c *Client) submitTicket(ctx context.Context, csrf, body string) error {
	form := url.Values{
		"ticket[token]":   {csrf},
		"ticket[subject]": {defaultSubject},
		"ticket[message]": {body},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.supportBaseURL+"/tickets", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.follow.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "submitting ticket failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return apperr.New(apperr.KindUnavailable,
			fmt.Sprintf("ticket submit returned %d", resp.StatusCode))
	}
	c.log.Info("support ticket filed")
	return nil
}

func nodeAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
