package reconcile

import (
	"context"
	"errors"

	"github.com/A-tamer/hospital-management-system/model"
)

// PatientSaver persists a new record and returns the id the store assigned.
// Implementations must reject a code that is already taken with a
// *DuplicateCodeError; that check is the authoritative uniqueness guard.
type PatientSaver interface {
	Save(ctx context.Context, p *model.Patient) (string, error)
}

// PatientLister returns every stored record.
type PatientLister interface {
	ListAll(ctx context.Context) ([]model.Patient, error)
}

// ListQuery filters, sorts and paginates a patient listing.
type ListQuery struct {
	Keyword     string
	Status      string
	Gender      string
	GroupByDate string // last_2_days, last_3_months, last_6_months
	Month       string // YYYY-MM of the visited date
	SortBy      string // full_name, code, visited_date, created_at
	SortDir     string // asc, desc
	Limit       int
	Offset      int
}

// PatientStore is the full persistence contract used by the service layer.
type PatientStore interface {
	PatientSaver
	PatientLister
	Get(ctx context.Context, id string) (model.Patient, error)
	Update(ctx context.Context, p *model.Patient) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q ListQuery) ([]model.Patient, int64, error)
}

// AccountStore looks up and stores staff accounts.
type AccountStore interface {
	GetAccountByEmail(ctx context.Context, email string) (model.UserAccount, error)
	SaveAccount(ctx context.Context, a *model.UserAccount) error
}

// storeErr wraps infrastructure failures in a *StoreError while letting
// not-found and duplicate-code errors through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var dup *DuplicateCodeError
	var se *StoreError
	if errors.Is(err, ErrNotFound) || errors.As(err, &dup) || errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
