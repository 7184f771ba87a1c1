// Package fetcher downloads published spreadsheet CSV exports. Published
// Google Sheets URLs answer with an HTML meta-redirect page rather than a
// plain 30x, so the client resolves that one extra hop itself.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// hrefPattern pulls the target URL out of the interstitial redirect page.
var hrefPattern = regexp.MustCompile(`HREF="([^"]+)"`)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Client fetches CSV text from publish-to-web spreadsheet URLs.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a fetch client with the given per-request timeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			// Redirect bodies carry the real target in HTML; follow
			// manually so the interstitial page can be inspected.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger.With(slog.String("component", "fetcher")),
	}
}

// FetchCSV downloads the CSV body at url, following at most one
// HTML-interstitial redirect. It fails if the final body looks like HTML,
// which is what an expired or private publish link returns.
func (c *Client) FetchCSV(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}

	if target, ok := redirectTarget(body); ok {
		c.logger.DebugContext(ctx, "following publish redirect", slog.String("target", target))
		body, err = c.get(ctx, target)
		if err != nil {
			return "", err
		}
	}

	if strings.HasPrefix(strings.TrimSpace(body), "<") {
		return "", fmt.Errorf("fetch %s: response is HTML, not CSV; check the publish link", url)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response from %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return string(data), nil
}

// redirectTarget extracts the follow-up URL from an HTML redirect page.
// Entity-encoded ampersands in the href are decoded.
func redirectTarget(body string) (string, bool) {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "<") {
		return "", false
	}
	m := hrefPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return strings.ReplaceAll(m[1], "&amp;", "&"), true
}
