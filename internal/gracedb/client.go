package gracedb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public GraceDB REST API root.
	DefaultBaseURL = "https://gracedb.ligo.org/api/"
	userAgent      = "gracebot/1.0 (github.com/Roald87/GraceDB)"
	timeout        = 30 * time.Second
	maxRetries     = 3
)

// Superevent is one superevent record as returned by the API. Created is kept
// as the raw API string; parsing it is the event store's responsibility.
type Superevent struct {
	ID      string   `json:"superevent_id"`
	Created string   `json:"created"`
	Labels  []string `json:"labels"`
}

// VOEventEntry is one entry of a superevent's alert document version listing.
type VOEventEntry struct {
	N        int    `json:"N"`
	Filename string `json:"filename"`
	Links    struct {
		File string `json:"file"`
	} `json:"links"`
}

// Client is a GraceDB REST API client.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a client for the API at baseURL. An empty baseURL selects
// the public GraceDB instance.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "gracedb").Logger(),
	}
}

// Superevents fetches the full superevent listing matching query, ordered by
// creation time descending. All result pages are followed.
func (c *Client) Superevents(ctx context.Context, query string) ([]Superevent, error) {
	var page struct {
		Superevents []Superevent `json:"superevents"`
		Links       struct {
			Next string `json:"next"`
		} `json:"links"`
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("orderby", "-created")
	next := c.baseURL + "superevents/?" + params.Encode()

	var all []Superevent
	for next != "" {
		page.Superevents = nil
		page.Links.Next = ""
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("listing superevents: %w", err)
		}
		all = append(all, page.Superevents...)
		next = page.Links.Next
	}

	return all, nil
}

// Superevent fetches a single superevent by id.
func (c *Client) Superevent(ctx context.Context, eventID string) (*Superevent, error) {
	var ev Superevent
	if err := c.getJSON(ctx, c.baseURL+"superevents/"+url.PathEscape(eventID)+"/", &ev); err != nil {
		return nil, fmt.Errorf("fetching superevent %s: %w", eventID, err)
	}
	return &ev, nil
}

// Files fetches the filename to URL mapping of all files attached to an event.
func (c *Client) Files(ctx context.Context, eventID string) (map[string]string, error) {
	files := make(map[string]string)
	if err := c.getJSON(ctx, c.baseURL+"superevents/"+url.PathEscape(eventID)+"/files/", &files); err != nil {
		return nil, fmt.Errorf("listing files of %s: %w", eventID, err)
	}
	return files, nil
}

// VOEvents fetches the alert document version listing of an event.
func (c *Client) VOEvents(ctx context.Context, eventID string) ([]VOEventEntry, error) {
	var resp struct {
		VOEvents []VOEventEntry `json:"voevents"`
	}
	if err := c.getJSON(ctx, c.baseURL+"superevents/"+url.PathEscape(eventID)+"/voevents/", &resp); err != nil {
		return nil, fmt.Errorf("listing voevents of %s: %w", eventID, err)
	}
	return resp.VOEvents, nil
}

// Get fetches the raw bytes behind any GraceDB URL, typically a file link
// taken from a listing.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := c.retry(ctx, func() error {
		var err error
		body, err = c.fetch(ctx, rawURL)
		return err
	})
	return body, err
}

// getJSON fetches a URL and decodes the JSON response into v.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	return c.retry(ctx, func() error {
		body, err := c.fetch(ctx, rawURL)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, v); err != nil {
			return backoff.Permanent(fmt.Errorf("parsing response from %s: %w", rawURL, err))
		}
		return nil
	})
}

// fetch performs one GET. A 404 maps to ErrNotFound and is never retried;
// server errors are left retryable.
func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(fmt.Errorf("%s: %w", rawURL, ErrNotFound))
	case resp.StatusCode >= 500:
		return nil, &APIError{URL: rawURL, StatusCode: resp.StatusCode}
	default:
		return nil, backoff.Permanent(&APIError{URL: rawURL, StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", rawURL, err)
	}
	return body, nil
}

func (c *Client) retry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		var perm *backoff.PermanentError
		if err != nil && !errors.As(err, &perm) {
			c.log.Warn().Err(err).Msg("transient GraceDB error, retrying")
		}
		return err
	}, bo)
}
