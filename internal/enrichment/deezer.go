package enrichment

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

// Deezer supplies high-resolution cover art, artist images and album genres.
// No API key required.
type Deezer struct {
	BaseURL string
	http    *httpclient.Client
}

func NewDeezer(baseURL string) *Deezer {
	return &Deezer{
		BaseURL: baseURL,
		http:    httpclient.New(&http.Client{Timeout: 10 * time.Second}, 0),
	}
}

func (d *Deezer) Name() string { return "deezer" }

func (d *Deezer) Enrich(ctx context.Context, artist, title string) (*domain.Enrichment, error) {
	q := fmt.Sprintf(`artist:"%s" track:"%s"`, artist, title)
	u := fmt.Sprintf("%s/search?q=%s&limit=1", d.BaseURL, url.QueryEscape(q))

	var searchResp struct {
		Data []struct {
			Album struct {
				ID       json.Number `json:"id"`
				CoverXL  string      `json:"cover_xl"`
				CoverBig string      `json:"cover_big"`
			} `json:"album"`
			Artist struct {
				PictureXL  string `json:"picture_xl"`
				PictureBig string `json:"picture_big"`
			} `json:"artist"`
		} `json:"data"`
	}
	if err := d.get(ctx, u, &searchResp); err != nil {
		return nil, err
	}
	if len(searchResp.Data) == 0 {
		return nil, nil
	}

	hit := searchResp.Data[0]
	enr := &domain.Enrichment{Sources: []string{d.Name()}}

	if enr.CoverURL = hit.Album.CoverXL; enr.CoverURL == "" {
		enr.CoverURL = hit.Album.CoverBig
	}
	if enr.ArtistImageURL = hit.Artist.PictureXL; enr.ArtistImageURL == "" {
		enr.ArtistImageURL = hit.Artist.PictureBig
	}

	// Genres live on the album resource, not the search hit.
	if albumID := hit.Album.ID.String(); albumID != "" && albumID != "0" {
		var albumResp struct {
			Genres struct {
				Data []struct {
					Name string `json:"name"`
				} `json:"data"`
			} `json:"genres"`
		}
		if err := d.get(ctx, fmt.Sprintf("%s/album/%s", d.BaseURL, albumID), &albumResp); err == nil {
			for _, g := range albumResp.Genres.Data {
				enr.Genres = append(enr.Genres, g.Name)
			}
		}
	}

	return enr, nil
}

func (d *Deezer) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("deezer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deezer returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
