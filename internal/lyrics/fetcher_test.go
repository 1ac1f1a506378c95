package lyrics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nmoreras/trackfetch/internal/domain"
)

var testTarget = domain.TargetTrack{
	ID:       "trk-1",
	Title:    "Mr. Brightside",
	Artists:  []string{"The Killers"},
	Album:    "Hot Fuss",
	Duration: 222,
}

func lrclibServer(t *testing.T, synced, plain string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("track_name"); got != "Mr. Brightside" {
			t.Errorf("track_name = %q", got)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"syncedLyrics": synced,
			"plainLyrics":  plain,
		})
	}))
}

func geniusServer(t *testing.T, plain string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		switch r.URL.Path {
		case "/search":
			json.NewEncoder(w).Encode(map[string]any{
				"response": map[string]any{
					"hits": []map[string]any{{"result": map[string]any{"id": 77}}},
				},
			})
		case "/songs/77":
			json.NewEncoder(w).Encode(map[string]any{
				"response": map[string]any{
					"song": map[string]any{"lyrics": map[string]any{"plain": plain}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestFetchPrefersSynced(t *testing.T) {
	lrc := lrclibServer(t, "[00:12.00] Coming out of my cage", "Coming out of my cage", http.StatusOK)
	defer lrc.Close()
	gen := geniusServer(t, "should not be reached")
	defer gen.Close()

	f := NewFetcher(NewLRCLib(lrc.URL), NewGenius(gen.URL, "tok"), nil, nil)
	got := f.Fetch(context.Background(), testTarget, true)

	if got == nil {
		t.Fatal("expected lyrics")
	}
	if !got.Synced || got.Source != ProviderLRCLib {
		t.Errorf("got %+v, want synced lyrics from lrclib", got)
	}
}

func TestFetchFallsBackToGenius(t *testing.T) {
	lrc := lrclibServer(t, "", "", http.StatusNotFound)
	defer lrc.Close()
	gen := geniusServer(t, "Coming out of my cage")
	defer gen.Close()

	f := NewFetcher(NewLRCLib(lrc.URL), NewGenius(gen.URL, "tok"), nil, nil)
	got := f.Fetch(context.Background(), testTarget, true)

	if got == nil {
		t.Fatal("expected lyrics")
	}
	if got.Synced || got.Source != ProviderGenius {
		t.Errorf("got %+v, want plain lyrics from genius", got)
	}
}

func TestFetchUsesPlainLRCLibLast(t *testing.T) {
	// Synced missing, Genius has no token: the chain ends on LRCLIB plain.
	lrc := lrclibServer(t, "", "Coming out of my cage", http.StatusOK)
	defer lrc.Close()

	f := NewFetcher(NewLRCLib(lrc.URL), NewGenius("http://unused", ""), nil, nil)
	got := f.Fetch(context.Background(), testTarget, true)

	if got == nil {
		t.Fatal("expected lyrics")
	}
	if got.Synced || got.Source != ProviderLRCLib {
		t.Errorf("got %+v, want plain lyrics from lrclib", got)
	}
}

func TestFetchPlainPreferredSkipsSynced(t *testing.T) {
	lrc := lrclibServer(t, "[00:12.00] synced", "plain text", http.StatusOK)
	defer lrc.Close()
	gen := geniusServer(t, "genius plain")
	defer gen.Close()

	f := NewFetcher(NewLRCLib(lrc.URL), NewGenius(gen.URL, "tok"), nil, nil)
	got := f.Fetch(context.Background(), testTarget, false)

	if got == nil {
		t.Fatal("expected lyrics")
	}
	if got.Synced {
		t.Errorf("got synced lyrics, plain was preferred: %+v", got)
	}
}

func TestFetchNothingFound(t *testing.T) {
	lrc := lrclibServer(t, "", "", http.StatusNotFound)
	defer lrc.Close()

	f := NewFetcher(NewLRCLib(lrc.URL), NewGenius("http://unused", ""), nil, nil)
	if got := f.Fetch(context.Background(), testTarget, true); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestFetchProviderErrorIsNonFatal(t *testing.T) {
	lrc := lrclibServer(t, "", "", http.StatusInternalServerError)
	defer lrc.Close()
	gen := geniusServer(t, "still works")
	defer gen.Close()

	f := NewFetcher(NewLRCLib(lrc.URL), NewGenius(gen.URL, "tok"), nil, nil)
	got := f.Fetch(context.Background(), testTarget, true)

	if got == nil || got.Source != ProviderGenius {
		t.Fatalf("got %+v, want genius lyrics despite lrclib failure", got)
	}
}
