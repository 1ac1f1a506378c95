package domain

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"resolution error carries its kind", NewResolutionError(ErrorKindTransient, StageFetch, errors.New("503")), ErrorKindTransient},
		{"wrapped resolution error", fmt.Errorf("stage: %w", NewResolutionError(ErrorKindContentMismatch, StageResolve, ErrNoMatch)), ErrorKindContentMismatch},
		{"bare no-match", fmt.Errorf("resolve: %w", ErrNoMatch), ErrorKindContentMismatch},
		{"job cancelled", ErrJobCancelled, ErrorKindCancelled},
		{"context cancelled", context.Canceled, ErrorKindCancelled},
		{"deadline exceeded", context.DeadlineExceeded, ErrorKindTransient},
		{"unclassified", errors.New("something odd"), ErrorKindPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetriable(t *testing.T) {
	if !Retriable(NewResolutionError(ErrorKindTransient, StageFetch, errors.New("429"))) {
		t.Error("transient error not retriable")
	}
	if Retriable(NewResolutionError(ErrorKindPermanent, StageFetch, errors.New("400"))) {
		t.Error("permanent error retriable")
	}
	if Retriable(fmt.Errorf("resolve: %w", ErrNoMatch)) {
		t.Error("content mismatch retriable")
	}
}

func TestResolutionErrorUnwraps(t *testing.T) {
	cause := errors.New("root cause")
	err := NewResolutionError(ErrorKindPermanent, StageTag, cause)
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is lost the cause")
	}
	msg := err.Error()
	if msg != "tag: infrastructure_permanent: root cause" {
		t.Fatalf("Error() = %q", msg)
	}
}

func TestJobStatusTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusSucceeded, JobStatusFailed, JobStatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false", s)
		}
	}
	for _, s := range []JobStatus{JobStatusPending, JobStatusRunning} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true", s)
		}
	}
}

func TestEnrichmentMergeEarlierScalarsWin(t *testing.T) {
	e := &Enrichment{CoverURL: "first", ISRC: "AAA", Sources: []string{"deezer"}}
	e.Merge(&Enrichment{CoverURL: "second", ISRC: "BBB", ArtistImageURL: "img", Sources: []string{"lastfm"}})

	if e.CoverURL != "first" || e.ISRC != "AAA" {
		t.Fatalf("later scalar overwrote earlier: %+v", e)
	}
	if e.ArtistImageURL != "img" {
		t.Fatalf("empty scalar not filled: %+v", e)
	}
	if !reflect.DeepEqual(e.Sources, []string{"deezer", "lastfm"}) {
		t.Fatalf("Sources = %v", e.Sources)
	}
}

func TestEnrichmentMergeDeduplicatesLists(t *testing.T) {
	e := &Enrichment{Genres: []string{"Rock", "Indie"}}
	e.Merge(&Enrichment{Genres: []string{"Indie", "Alternative"}})
	e.Merge(nil)

	if !reflect.DeepEqual(e.Genres, []string{"Rock", "Indie", "Alternative"}) {
		t.Fatalf("Genres = %v", e.Genres)
	}
}

func TestPrimaryArtist(t *testing.T) {
	tr := TargetTrack{Artists: []string{"The Killers", "Someone Else"}}
	if got := tr.PrimaryArtist(); got != "The Killers" {
		t.Fatalf("PrimaryArtist = %q", got)
	}
	empty := TargetTrack{}
	if got := empty.PrimaryArtist(); got != "" {
		t.Fatalf("PrimaryArtist on empty = %q", got)
	}
}
