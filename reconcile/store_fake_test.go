package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/google/uuid"
)

// memStore is an in-memory PatientStore that enforces code uniqueness the
// way the real backends do.
type memStore struct {
	mu       sync.Mutex
	byID     map[string]model.Patient
	order    []string
	saveErr  map[string]error // keyed by code
	listErr  error
	saveCall int
}

func newMemStore(seed ...model.Patient) *memStore {
	s := &memStore{byID: map[string]model.Patient{}, saveErr: map[string]error{}}
	for _, p := range seed {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		s.byID[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	return s
}

func (s *memStore) Save(_ context.Context, p *model.Patient) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCall++
	if err, ok := s.saveErr[p.Code]; ok {
		return "", err
	}
	for _, existing := range s.byID {
		if existing.Code == p.Code {
			return "", &DuplicateCodeError{Code: p.Code, ConflictID: existing.ID}
		}
	}
	p.ID = uuid.NewString()
	s.byID[p.ID] = *p
	s.order = append(s.order, p.ID)
	return p.ID, nil
}

func (s *memStore) ListAll(context.Context) ([]model.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]model.Patient, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, id string) (model.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return model.Patient{}, ErrNotFound
	}
	return p, nil
}

func (s *memStore) Update(_ context.Context, p *model.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; !ok {
		return ErrNotFound
	}
	for _, existing := range s.byID {
		if existing.ID != p.ID && existing.Code == p.Code {
			return &DuplicateCodeError{Code: p.Code, ConflictID: existing.ID}
		}
	}
	s.byID[p.ID] = *p
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *memStore) List(ctx context.Context, q ListQuery) ([]model.Patient, int64, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return all, int64(len(all)), nil
}

func (s *memStore) codes() []string {
	all, _ := s.ListAll(context.Background())
	codes := codesOf(all)
	sort.Strings(codes)
	return codes
}

var errBoom = errors.New("boom")
