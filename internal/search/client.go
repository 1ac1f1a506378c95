// Package search talks to the external audio-platform search backend. The
// backend takes a free-text query and returns a bounded list of raw results;
// ranking them is the resolver's job, not ours.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nmoreras/trackfetch/internal/domain"
	"github.com/nmoreras/trackfetch/internal/httpclient"
)

// Client is the search backend contract.
type Client interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error)
}

// HTTPClient queries the search bridge service.
type HTTPClient struct {
	BaseURL string
	http    *httpclient.Client
}

// NewHTTPClient creates a search client for the given bridge base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		http:    httpclient.New(&http.Client{Timeout: 30 * time.Second}, 0),
	}
}

func (c *HTTPClient) Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	u := fmt.Sprintf("%s/search?q=%s&limit=%d", c.BaseURL, url.QueryEscape(query), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageResolve, err)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, domain.NewResolutionError(domain.ErrorKindTransient, domain.StageResolve,
			fmt.Errorf("search backend unreachable: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, domain.NewResolutionError(domain.ErrorKindTransient, domain.StageResolve,
			fmt.Errorf("search backend returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageResolve,
			fmt.Errorf("search backend returned status %d", resp.StatusCode))
	}

	var body struct {
		Results []struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Uploader  string `json:"uploader"`
			Duration  int    `json:"duration"`
			ViewCount int64  `json:"view_count"`
			URL       string `json:"url"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageResolve,
			fmt.Errorf("malformed search response: %w", err))
	}

	candidates := make([]domain.Candidate, 0, len(body.Results))
	for _, r := range body.Results {
		if r.ID == "" {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			SourceID:  r.ID,
			Title:     r.Title,
			Uploader:  r.Uploader,
			Duration:  r.Duration,
			ViewCount: r.ViewCount,
			URL:       r.URL,
		})
	}
	return candidates, nil
}
