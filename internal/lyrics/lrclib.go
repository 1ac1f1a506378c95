// Package lyrics fetches song lyrics from external providers. The chain is
// ordered and best-effort: synced lyrics first when requested, plain text
// otherwise, and a job without lyrics is still a successful job.
package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nmoreras/trackfetch/internal/constants"
	"github.com/nmoreras/trackfetch/internal/httpclient"
)

// LRCLib serves both time-synced (LRC) and plain lyrics, matched by
// artist, title and track duration.
type LRCLib struct {
	BaseURL string
	http    *httpclient.Client
}

func NewLRCLib(baseURL string) *LRCLib {
	return &LRCLib{
		BaseURL: baseURL,
		http:    httpclient.New(&http.Client{Timeout: 10 * time.Second}, constants.LRCLibInterval),
	}
}

type lrclibResult struct {
	Synced string
	Plain  string
}

// Get looks up the track. A 404 is a clean miss, not an error.
func (l *LRCLib) Get(ctx context.Context, artist, title, album string, durationSec int) (*lrclibResult, error) {
	params := url.Values{}
	params.Set("artist_name", artist)
	params.Set("track_name", title)
	if album != "" {
		params.Set("album_name", album)
	}
	if durationSec > 0 {
		params.Set("duration", strconv.Itoa(durationSec))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.BaseURL+"/get?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lrclib request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lrclib returned status %d", resp.StatusCode)
	}

	var body struct {
		SyncedLyrics string `json:"syncedLyrics"`
		PlainLyrics  string `json:"plainLyrics"`
		Instrumental bool   `json:"instrumental"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("malformed lrclib response: %w", err)
	}
	if body.Instrumental {
		return nil, nil
	}
	return &lrclibResult{Synced: body.SyncedLyrics, Plain: body.PlainLyrics}, nil
}
