package catalog

import (
	"context"

	"github.com/nmoreras/trackfetch/internal/domain"
)

// MockProvider serves a fixed track table for tests.
type MockProvider struct {
	Tracks map[string]*domain.TargetTrack
	Err    error
}

func NewMockProvider(tracks ...*domain.TargetTrack) *MockProvider {
	m := &MockProvider{Tracks: make(map[string]*domain.TargetTrack)}
	for _, t := range tracks {
		m.Tracks[t.ID] = t
	}
	return m
}

func (m *MockProvider) GetTrack(ctx context.Context, id string) (*domain.TargetTrack, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if t, ok := m.Tracks[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, domain.NewResolutionError(domain.ErrorKindPermanent, domain.StageMetadata,
		domain.ErrJobNotFound)
}
