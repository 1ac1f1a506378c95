package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nmoreras/trackfetch/internal/httpclient"
)

// Genius serves plain-text lyrics behind a bearer token. A client built
// without a token reports a clean miss instead of failing every lookup.
type Genius struct {
	BaseURL string
	Token   string
	http    *httpclient.Client
}

func NewGenius(baseURL, token string) *Genius {
	return &Genius{
		BaseURL: baseURL,
		Token:   token,
		http:    httpclient.New(&http.Client{Timeout: 15 * time.Second}, 0),
	}
}

// Get searches for the song and pulls its plain lyrics. Returns "" on a miss.
func (g *Genius) Get(ctx context.Context, artist, title string) (string, error) {
	if g.Token == "" {
		return "", nil
	}

	query := url.QueryEscape(artist + " " + title)
	var searchResp struct {
		Response struct {
			Hits []struct {
				Result struct {
					ID json.Number `json:"id"`
				} `json:"result"`
			} `json:"hits"`
		} `json:"response"`
	}
	if err := g.get(ctx, g.BaseURL+"/search?q="+query, &searchResp); err != nil {
		return "", err
	}
	if len(searchResp.Response.Hits) == 0 {
		return "", nil
	}

	songID := searchResp.Response.Hits[0].Result.ID.String()
	var songResp struct {
		Response struct {
			Song struct {
				Lyrics struct {
					Plain string `json:"plain"`
				} `json:"lyrics"`
			} `json:"song"`
		} `json:"response"`
	}
	if err := g.get(ctx, g.BaseURL+"/songs/"+songID+"?text_format=plain", &songResp); err != nil {
		return "", err
	}
	return songResp.Response.Song.Lyrics.Plain, nil
}

func (g *Genius) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("genius request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("genius returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
