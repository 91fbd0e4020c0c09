package reconcile

import (
	"context"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
	"gorm.io/datatypes"
)

// Service is the single-record path: create, update and delete patients
// one at a time against the live store.
type Service struct {
	store PatientStore
	now   func() time.Time
}

// NewService creates a Service over store.
func NewService(store PatientStore) *Service {
	return &Service{store: store, now: time.Now}
}

// SetClock overrides the service time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// NextCode returns the code the next manually created patient would get.
func (s *Service) NextCode(ctx context.Context) (string, error) {
	existing, err := s.store.ListAll(ctx)
	if err != nil {
		return "", storeErr("list", err)
	}
	return AllocateCode(existing, s.now()), nil
}

// Create normalizes a manually entered record, allocates or validates its
// code against every known record and saves it.
func (s *Service) Create(ctx context.Context, raw RawRecord) (model.Patient, error) {
	p, err := NewNormalizer(WithClock(s.now)).Normalize(raw, Manual)
	if err != nil {
		return model.Patient{}, err
	}

	existing, err := s.store.ListAll(ctx)
	if err != nil {
		return model.Patient{}, storeErr("list", err)
	}
	if p.Code == "" {
		p.Code = AllocateCode(existing, s.now())
	} else if err := ValidateCode(p.Code, "", existing); err != nil {
		return model.Patient{}, err
	}

	if _, err := s.store.Save(ctx, &p); err != nil {
		return model.Patient{}, storeErr("save", err)
	}
	return p, nil
}

// Get returns one patient.
func (s *Service) Get(ctx context.Context, id string) (model.Patient, error) {
	p, err := s.store.Get(ctx, id)
	return p, storeErr("get", err)
}

// List returns a filtered page of patients and the filtered total.
func (s *Service) List(ctx context.Context, q ListQuery) ([]model.Patient, int64, error) {
	patients, total, err := s.store.List(ctx, q)
	return patients, total, storeErr("list", err)
}

// Delete removes a patient permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return storeErr("get", err)
	}
	return storeErr("delete", s.store.Delete(ctx, id))
}

// Update merges req into the stored patient. A changed code is checked
// against every other record before saving.
func (s *Service) Update(ctx context.Context, id string, req model.UpdatePatientRequest) (model.Patient, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Patient{}, storeErr("get", err)
	}
	updated, err := ApplyUpdate(existing, req, s.now())
	if err != nil {
		return model.Patient{}, err
	}
	if updated.Code != existing.Code {
		all, err := s.store.ListAll(ctx)
		if err != nil {
			return model.Patient{}, storeErr("list", err)
		}
		if err := ValidateCode(updated.Code, id, all); err != nil {
			return model.Patient{}, err
		}
	}
	return s.save(ctx, updated)
}

// AddFollowUp appends a follow-up visit to the patient.
func (s *Service) AddFollowUp(ctx context.Context, id string, f model.FollowUp) (model.Patient, error) {
	return s.mutate(ctx, id, func(p *model.Patient) error {
		p.FollowUps = datatypes.JSONSlice[model.FollowUp](AddFollowUp(p.FollowUps, f))
		return nil
	})
}

// RemoveFollowUp deletes follow-up number and renumbers the rest.
func (s *Service) RemoveFollowUp(ctx context.Context, id string, number int) (model.Patient, error) {
	return s.mutate(ctx, id, func(p *model.Patient) error {
		rest, err := RemoveFollowUp(p.FollowUps, number)
		if err != nil {
			return err
		}
		p.FollowUps = datatypes.JSONSlice[model.FollowUp](rest)
		return nil
	})
}

// AddSurgery records a surgery for the patient.
func (s *Service) AddSurgery(ctx context.Context, id string, surgery model.Surgery) (model.Patient, error) {
	return s.mutate(ctx, id, func(p *model.Patient) error {
		p.Surgeries = datatypes.JSONSlice[model.Surgery](AddSurgery(p.Surgeries, surgery))
		return nil
	})
}

// RemoveSurgery deletes the surgery at index.
func (s *Service) RemoveSurgery(ctx context.Context, id string, index int) (model.Patient, error) {
	return s.mutate(ctx, id, func(p *model.Patient) error {
		rest, err := RemoveSurgery(p.Surgeries, index)
		if err != nil {
			return err
		}
		p.Surgeries = datatypes.JSONSlice[model.Surgery](rest)
		return nil
	})
}

// Dashboard summarizes every stored patient.
func (s *Service) Dashboard(ctx context.Context, financial bool) (Dashboard, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return Dashboard{}, storeErr("list", err)
	}
	return BuildDashboard(all, s.now(), financial), nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(p *model.Patient) error) (model.Patient, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Patient{}, storeErr("get", err)
	}
	if err := fn(&p); err != nil {
		return model.Patient{}, err
	}
	return s.save(ctx, Derive(p, s.now()))
}

func (s *Service) save(ctx context.Context, p model.Patient) (model.Patient, error) {
	if err := s.store.Update(ctx, &p); err != nil {
		return model.Patient{}, storeErr("update", err)
	}
	return p, nil
}
