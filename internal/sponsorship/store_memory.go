package sponsorship

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"sponsorlink/pkg/platform/sentinel"
)

// InMemoryStore keeps sponsorships in a mutex-guarded map. It backs unit tests
// and demo mode; production uses PostgresStore.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Sponsorship
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Sponsorship)}
}

func (s *InMemoryStore) FindActiveByCredentials(_ context.Context, email, code string) (*Sponsorship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[code]
	if !ok || !strings.EqualFold(rec.Email, email) || !rec.Authenticatable() {
		return nil, sentinel.ErrNotFound
	}
	return clone(rec), nil
}

func (s *InMemoryStore) FindActiveByCode(_ context.Context, code string) (*Sponsorship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[code]
	if !ok || !rec.Authenticatable() {
		return nil, sentinel.ErrNotFound
	}
	return clone(rec), nil
}

func (s *InMemoryStore) GetByCode(_ context.Context, code string) (*Sponsorship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(rec), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Sponsorship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Sponsorship, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, clone(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SponsorCode < out[j].SponsorCode })
	return out, nil
}

func (s *InMemoryStore) Save(_ context.Context, sp *Sponsorship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[sp.SponsorCode] = clone(sp)
	return nil
}

// ClaimRequestSlot performs the compare-and-set under the write lock so two
// concurrent claims for one sponsorship serialize here.
func (s *InMemoryStore) ClaimRequestSlot(_ context.Context, code string, now time.Time, cooldown time.Duration) (*Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if rec.NextRequestEligibleAt != nil && rec.NextRequestEligibleAt.After(now) {
		return nil, &ThrottledError{NextEligibleAt: *rec.NextRequestEligibleAt}
	}

	next := now.Add(cooldown)
	requested := now
	rec.LastRequestAt = &requested
	rec.NextRequestEligibleAt = &next
	rec.UpdatedAt = now

	return &Claim{SponsorCode: code, RequestedAt: requested, NextEligibleAt: next}, nil
}

func clone(rec *Sponsorship) *Sponsorship {
	cp := *rec
	if rec.LastRequestAt != nil {
		t := *rec.LastRequestAt
		cp.LastRequestAt = &t
	}
	if rec.NextRequestEligibleAt != nil {
		t := *rec.NextRequestEligibleAt
		cp.NextRequestEligibleAt = &t
	}
	cp.ChildPhotos = append([]string(nil), rec.ChildPhotos...)
	return &cp
}
