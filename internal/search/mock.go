package search

import (
	"context"
	"sync/atomic"

	"github.com/nmoreras/trackfetch/internal/domain"
)

// MockClient serves canned candidates and counts calls. The call counter is
// how tests observe that deduplication collapsed concurrent resolutions into
// one backend hit.
type MockClient struct {
	Candidates []domain.Candidate
	Err        error
	calls      atomic.Int64
}

func NewMockClient(candidates ...domain.Candidate) *MockClient {
	return &MockClient{Candidates: candidates}
}

func (m *MockClient) Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > 0 && limit < len(m.Candidates) {
		return m.Candidates[:limit], nil
	}
	return m.Candidates, nil
}

// Calls returns how many times Search was invoked.
func (m *MockClient) Calls() int64 {
	return m.calls.Load()
}
