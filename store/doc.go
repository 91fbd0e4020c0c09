package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/reconcile"
	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	patientPrefix = "patient/"
	codePrefix    = "code/"
	accountPrefix = "account/"
)

// DocStore keeps patients as JSON documents in LevelDB. Each patient lives
// under patient/<id>; code/<code> points back at the id and is the
// uniqueness index. Accounts live under account/<email>.
type DocStore struct {
	mu  sync.Mutex
	db  *leveldb.DB
	now func() time.Time
}

// OpenDocStore opens (or creates) a LevelDB database at path.
func OpenDocStore(path string) (*DocStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return NewDocStore(db), nil
}

// NewDocStore wraps an open LevelDB handle.
func NewDocStore(db *leveldb.DB) *DocStore {
	return &DocStore{db: db, now: time.Now}
}

// Close releases the database.
func (s *DocStore) Close() error {
	return s.db.Close()
}

// Save stores p under a fresh id and claims its code in the same batch.
func (s *DocStore) Save(_ context.Context, p *model.Patient) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCode(p.Code, ""); err != nil {
		return "", err
	}
	p.ID = uuid.NewString()
	doc, err := json.Marshal(p)
	if err != nil {
		p.ID = ""
		return "", err
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(patientPrefix+p.ID), doc)
	batch.Put([]byte(codePrefix+p.Code), []byte(p.ID))
	if err := s.db.Write(batch, nil); err != nil {
		p.ID = ""
		return "", err
	}
	return p.ID, nil
}

// ListAll returns every patient ordered by code.
func (s *DocStore) ListAll(_ context.Context) ([]model.Patient, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(patientPrefix)), nil)
	defer iter.Release()

	var patients []model.Patient
	for iter.Next() {
		var p model.Patient
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		patients = append(patients, p)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.SliceStable(patients, func(i, j int) bool { return patients[i].Code < patients[j].Code })
	return patients, nil
}

// Get returns the patient with the given id.
func (s *DocStore) Get(_ context.Context, id string) (model.Patient, error) {
	return s.get(id)
}

// Update replaces the stored document and moves the code index when the
// code changed.
func (s *DocStore) Update(_ context.Context, p *model.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.get(p.ID)
	if err != nil {
		return err
	}
	if err := s.checkCode(p.Code, p.ID); err != nil {
		return err
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	if existing.Code != p.Code {
		batch.Delete([]byte(codePrefix + existing.Code))
		batch.Put([]byte(codePrefix+p.Code), []byte(p.ID))
	}
	batch.Put([]byte(patientPrefix+p.ID), doc)
	return s.db.Write(batch, nil)
}

// Delete removes the document and its code index entry.
func (s *DocStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.get(id)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete([]byte(patientPrefix + id))
	if owner, err := s.db.Get([]byte(codePrefix+existing.Code), nil); err == nil && string(owner) == id {
		batch.Delete([]byte(codePrefix + existing.Code))
	}
	return s.db.Write(batch, nil)
}

// List filters in memory with the same semantics as SQLStore.List.
func (s *DocStore) List(ctx context.Context, q reconcile.ListQuery) ([]model.Patient, int64, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	patients, total := applyQuery(all, q, s.now())
	return patients, total, nil
}

// GetAccountByEmail returns the account stored for email.
func (s *DocStore) GetAccountByEmail(_ context.Context, email string) (model.UserAccount, error) {
	raw, err := s.db.Get([]byte(accountPrefix+normalizeEmail(email)), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return model.UserAccount{}, reconcile.ErrNotFound
	}
	if err != nil {
		return model.UserAccount{}, err
	}
	var a model.UserAccount
	if err := json.Unmarshal(raw, &a); err != nil {
		return model.UserAccount{}, err
	}
	return a, nil
}

// SaveAccount creates or replaces the account keyed by its email.
func (s *DocStore) SaveAccount(ctx context.Context, a *model.UserAccount) error {
	a.Email = normalizeEmail(a.Email)
	if a.Role == "" {
		a.Role = model.RoleUser
	}
	if !model.ValidRole(a.Role) {
		return fmt.Errorf("%w: unknown role %q", reconcile.ErrInvalidInput, a.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, err := s.GetAccountByEmail(ctx, a.Email); err == nil {
		a.CreatedAt = existing.CreatedAt
	} else {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	doc, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(accountPrefix+a.Email), doc, nil)
}

func (s *DocStore) get(id string) (model.Patient, error) {
	raw, err := s.db.Get([]byte(patientPrefix+id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return model.Patient{}, reconcile.ErrNotFound
	}
	if err != nil {
		return model.Patient{}, err
	}
	var p model.Patient
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Patient{}, err
	}
	return p, nil
}

// checkCode must be called with s.mu held.
func (s *DocStore) checkCode(code, excludeID string) error {
	owner, err := s.db.Get([]byte(codePrefix+code), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if string(owner) == excludeID {
		return nil
	}
	return &reconcile.DuplicateCodeError{Code: code, ConflictID: string(owner)}
}
