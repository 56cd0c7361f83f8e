package detector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// StatusURL is the GWIStat page summarizing detector states.
	StatusURL = "https://ldas-jobs.ligo.caltech.edu/~gwistat/gwistat/gwistat.html"
	userAgent = "gracebot/1.0 (github.com/Roald87/GraceDB)"
	timeout   = 30 * time.Second
)

// Names are the detectors shown to users, in display order.
var Names = []string{"Hanford", "Livingston", "Virgo", "GEO600", "KAGRA"}

// Status is the state of one detector, e.g. {"Hanford", "Observing", "12:34"}.
type Status struct {
	Name     string
	State    string
	Duration string
}

// Client fetches and parses the detector status page.
type Client struct {
	client *http.Client
	url    string
}

// New creates a new status Client.
func New() *Client {
	return &Client{
		client: &http.Client{Timeout: timeout},
		url:    StatusURL,
	}
}

// Statuses fetches the status page and extracts the state of every known
// detector. Detectors missing from the page are skipped.
func (c *Client) Statuses(ctx context.Context) ([]Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching status page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return Parse(resp.Body)
}

// Parse extracts detector statuses from the GWIStat HTML. The page lays each
// detector out as consecutive cells: name, state, time in state.
func Parse(r io.Reader) ([]Status, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var cells []string
	doc.Find("td").Each(func(i int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			cells = append(cells, text)
		}
	})

	var statuses []Status
	for _, name := range Names {
		for i, cell := range cells {
			if !strings.Contains(cell, name) || i+2 >= len(cells) {
				continue
			}
			statuses = append(statuses, Status{
				Name:     name,
				State:    cells[i+1],
				Duration: cells[i+2],
			})
			break
		}
	}

	return statuses, nil
}
