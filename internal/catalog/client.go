// Package catalog fetches authoritative track metadata from the catalog
// provider by identifier. The provider is an external collaborator; this is
// only its client.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nmoreras/trackfetch/internal/domain"
	"github.com/nmoreras/trackfetch/internal/httpclient"
)

// Provider is the catalog-metadata contract.
type Provider interface {
	GetTrack(ctx context.Context, id string) (*domain.TargetTrack, error)
}

// HTTPProvider talks to the catalog bridge service.
type HTTPProvider struct {
	BaseURL string
	http    *httpclient.Client
}

// NewHTTPProvider creates a catalog client for the given base URL.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: baseURL,
		http:    httpclient.New(&http.Client{Timeout: 15 * time.Second}, 0),
	}
}

func (p *HTTPProvider) GetTrack(ctx context.Context, id string) (*domain.TargetTrack, error) {
	u := fmt.Sprintf("%s/tracks/%s", p.BaseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageMetadata, err)
	}

	resp, err := p.http.Do(ctx, req)
	if err != nil {
		return nil, domain.NewResolutionError(domain.ErrorKindTransient, domain.StageMetadata,
			fmt.Errorf("catalog unreachable: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, domain.NewResolutionError(domain.ErrorKindTransient, domain.StageMetadata,
			fmt.Errorf("catalog returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageMetadata,
			fmt.Errorf("catalog returned status %d for track %s", resp.StatusCode, id))
	}

	var body struct {
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		Artists     []string `json:"artists"`
		Album       string   `json:"album"`
		DurationMS  int      `json:"duration_ms"`
		TrackNumber int      `json:"track_number"`
		DiscNumber  int      `json:"disc_number"`
		ReleaseDate string   `json:"release_date"`
		ISRC        string   `json:"isrc"`
		AlbumArtURL string   `json:"album_art_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageMetadata,
			fmt.Errorf("malformed catalog response: %w", err))
	}
	if body.Title == "" {
		return nil, domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageMetadata,
			fmt.Errorf("catalog response missing title for track %s", id))
	}

	return &domain.TargetTrack{
		ID:          body.ID,
		Title:       body.Title,
		Artists:     body.Artists,
		Album:       body.Album,
		Duration:    body.DurationMS / 1000,
		TrackNumber: body.TrackNumber,
		DiscNumber:  body.DiscNumber,
		ReleaseDate: body.ReleaseDate,
		ISRC:        body.ISRC,
		AlbumArtURL: body.AlbumArtURL,
	}, nil
}
