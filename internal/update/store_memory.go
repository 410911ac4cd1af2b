package update

import (
	"context"
	"sort"
	"sync"
	"time"

	"sponsorlink/pkg/platform/sentinel"
)

// InMemoryStore keeps updates in a mutex-guarded map, for unit tests and demo
// mode.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Update
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Update)}
}

func (s *InMemoryStore) Create(_ context.Context, u *Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[u.ID]; exists {
		return sentinel.ErrConflict
	}
	s.records[u.ID] = cloneUpdate(u)
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id string) (*Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneUpdate(rec), nil
}

func (s *InMemoryStore) ListPublishedForChild(_ context.Context, childID string) ([]*Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Update
	for _, rec := range s.records {
		if rec.ChildID == childID && rec.Status == StatusPublished && rec.Visible {
			out = append(out, cloneUpdate(rec))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) MostRecentForChild(ctx context.Context, childID string) (*Update, error) {
	published, err := s.ListPublishedForChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	if len(published) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return published[0], nil
}

func (s *InMemoryStore) ListPending(_ context.Context) ([]*Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Update
	for _, rec := range s.records {
		if rec.Status == StatusPendingReview {
			out = append(out, cloneUpdate(rec))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) ListAllPublished(_ context.Context) ([]*Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Update
	for _, rec := range s.records {
		if rec.Status == StatusPublished {
			out = append(out, cloneUpdate(rec))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) Publish(_ context.Context, id string, at time.Time) (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	switch rec.Status {
	case StatusPublished:
		// Idempotent: the original publish stamp stands.
		return cloneUpdate(rec), nil
	case StatusPendingReview:
		rec.Status = StatusPublished
		rec.Visible = true
		stamp := at
		rec.PublishedAt = &stamp
		return cloneUpdate(rec), nil
	default:
		return nil, sentinel.ErrInvalidState
	}
}

func (s *InMemoryStore) Reject(_ context.Context, id string, reason string, _ time.Time) (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	switch rec.Status {
	case StatusRejected:
		// Idempotent: the original reason stands.
		return cloneUpdate(rec), nil
	case StatusPendingReview:
		rec.Status = StatusRejected
		rec.Visible = false
		rec.RejectionReason = reason
		return cloneUpdate(rec), nil
	default:
		return nil, sentinel.ErrInvalidState
	}
}

func (s *InMemoryStore) CreateCorrection(_ context.Context, correction *Update, supersededID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.records[supersededID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if prev.Status != StatusRejected {
		return sentinel.ErrInvalidState
	}
	if prev.SupersededByID != "" {
		return sentinel.ErrConflict
	}
	if _, exists := s.records[correction.ID]; exists {
		return sentinel.ErrConflict
	}

	correction.SupersedesID = supersededID
	cp := cloneUpdate(correction)
	s.records[cp.ID] = cp
	prev.SupersededByID = cp.ID
	return nil
}

func sortNewestFirst(updates []*Update) {
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].SubmittedAt.After(updates[j].SubmittedAt)
	})
}

func cloneUpdate(u *Update) *Update {
	cp := *u
	cp.Photos = append([]string(nil), u.Photos...)
	if u.RequestedAt != nil {
		t := *u.RequestedAt
		cp.RequestedAt = &t
	}
	if u.PublishedAt != nil {
		t := *u.PublishedAt
		cp.PublishedAt = &t
	}
	return &cp
}
