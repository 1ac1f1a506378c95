package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nmoreras/trackfetch/internal/constants"
	"github.com/nmoreras/trackfetch/internal/domain"
	"github.com/nmoreras/trackfetch/internal/httpclient"
)

const mbUserAgent = "trackfetch/1.0 (https://github.com/nmoreras/trackfetch)"

// MusicBrainz verifies the recording's ISRC and collects artist aliases.
// MusicBrainz enforces one request per second per client; the interval gate
// lives inside the HTTP client so both lookups share it.
type MusicBrainz struct {
	BaseURL string
	http    *httpclient.Client
}

func NewMusicBrainz(baseURL string) *MusicBrainz {
	return &MusicBrainz{
		BaseURL: baseURL,
		http:    httpclient.New(&http.Client{Timeout: 10 * time.Second}, constants.MusicBrainzInterval),
	}
}

func (m *MusicBrainz) Name() string { return "musicbrainz" }

func (m *MusicBrainz) Enrich(ctx context.Context, artist, title string) (*domain.Enrichment, error) {
	enr := &domain.Enrichment{Sources: []string{m.Name()}}

	isrc, err := m.lookupISRC(ctx, artist, title)
	if err != nil {
		return nil, err
	}
	enr.ISRC = isrc

	// Aliases are optional garnish; a failure here should not discard the
	// ISRC we already have.
	if aliases, err := m.lookupAliases(ctx, artist); err == nil {
		enr.ArtistAliases = aliases
	}

	return enr, nil
}

func (m *MusicBrainz) lookupISRC(ctx context.Context, artist, title string) (string, error) {
	query := fmt.Sprintf(`recording:"%s" AND artist:"%s"`, title, artist)
	u := fmt.Sprintf("%s/recording?query=%s&inc=isrcs&fmt=json&limit=1", m.BaseURL, url.QueryEscape(query))

	var resp struct {
		Recordings []struct {
			ISRCs []string `json:"isrcs"`
		} `json:"recordings"`
	}
	if err := m.get(ctx, u, &resp); err != nil {
		return "", err
	}
	if len(resp.Recordings) == 0 || len(resp.Recordings[0].ISRCs) == 0 {
		return "", nil
	}
	return resp.Recordings[0].ISRCs[0], nil
}

func (m *MusicBrainz) lookupAliases(ctx context.Context, artist string) ([]string, error) {
	u := fmt.Sprintf("%s/artist?query=%s&fmt=json&limit=1", m.BaseURL, url.QueryEscape(artist))

	var resp struct {
		Artists []struct {
			Aliases []struct {
				Name string `json:"name"`
			} `json:"aliases"`
		} `json:"artists"`
	}
	if err := m.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	if len(resp.Artists) == 0 {
		return nil, nil
	}

	var aliases []string
	for _, a := range resp.Artists[0].Aliases {
		if a.Name != "" {
			aliases = append(aliases, a.Name)
		}
	}
	return aliases, nil
}

func (m *MusicBrainz) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", mbUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("musicbrainz request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("musicbrainz returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
