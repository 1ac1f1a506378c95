package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nmoreras/trackfetch/internal/domain"
	"github.com/nmoreras/trackfetch/internal/httpclient"
)

// LastFM supplies genre tags and play counts. Requires an API key; a client
// constructed without one reports itself unavailable rather than erroring on
// every job.
type LastFM struct {
	BaseURL string
	APIKey  string
	http    *httpclient.Client
}

func NewLastFM(baseURL, apiKey string) *LastFM {
	return &LastFM{
		BaseURL: baseURL,
		APIKey:  apiKey,
		http:    httpclient.New(&http.Client{Timeout: 10 * time.Second}, 0),
	}
}

func (l *LastFM) Name() string { return "lastfm" }

func (l *LastFM) Enrich(ctx context.Context, artist, title string) (*domain.Enrichment, error) {
	if l.APIKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("method", "track.getInfo")
	params.Set("api_key", l.APIKey)
	params.Set("artist", artist)
	params.Set("track", title)
	params.Set("format", "json")
	params.Set("autocorrect", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("last.fm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("last.fm returned status %d", resp.StatusCode)
	}

	var body struct {
		Track struct {
			Playcount string `json:"playcount"`
			TopTags   struct {
				Tag []struct {
					Name string `json:"name"`
				} `json:"tag"`
			} `json:"toptags"`
		} `json:"track"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("malformed last.fm response: %w", err)
	}

	enr := &domain.Enrichment{Sources: []string{l.Name()}}
	if n, err := strconv.ParseInt(body.Track.Playcount, 10, 64); err == nil {
		enr.PlayCount = n
	}
	// The top three tags are the usable genre signal; everything after that
	// is crowd noise ("seen live", decade tags).
	for i, t := range body.Track.TopTags.Tag {
		if i == 3 {
			break
		}
		enr.Genres = append(enr.Genres, t.Name)
	}
	return enr, nil
}
