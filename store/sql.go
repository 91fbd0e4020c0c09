package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/reconcile"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SQLStore persists patients and accounts through gorm. It works with any of
// the MySQL, PostgreSQL or SQLite dialects.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLStore wraps an open gorm connection.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// DB exposes the underlying connection for audit logging.
func (s *SQLStore) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the tables used by the service.
func (s *SQLStore) Migrate() error {
	return s.db.AutoMigrate(&model.Patient{}, &model.UserAccount{}, &model.AuditLog{})
}

// Save inserts p with a fresh id. The code check and the insert share a
// transaction, and the unique index on code catches anything that races past.
func (s *SQLStore) Save(ctx context.Context, p *model.Patient) (string, error) {
	p.ID = uuid.NewString()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCodeAvailable(tx, p.Code, ""); err != nil {
			return err
		}
		return tx.Create(p).Error
	})
	if err != nil {
		p.ID = ""
		return "", translate(err, p.Code)
	}
	return p.ID, nil
}

// ListAll returns every patient ordered by code.
func (s *SQLStore) ListAll(ctx context.Context) ([]model.Patient, error) {
	var patients []model.Patient
	if err := s.db.WithContext(ctx).Order("code ASC").Find(&patients).Error; err != nil {
		return nil, err
	}
	return patients, nil
}

// Get returns the patient with the given id.
func (s *SQLStore) Get(ctx context.Context, id string) (model.Patient, error) {
	var p model.Patient
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return model.Patient{}, translate(err, "")
	}
	return p, nil
}

// Update overwrites an existing patient, rejecting a code held by another record.
func (s *SQLStore) Update(ctx context.Context, p *model.Patient) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Patient
		if err := tx.Select("id").Where("id = ?", p.ID).First(&existing).Error; err != nil {
			return err
		}
		if err := ensureCodeAvailable(tx, p.Code, p.ID); err != nil {
			return err
		}
		return tx.Save(p).Error
	})
	return translate(err, p.Code)
}

// Delete removes a patient permanently.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Patient{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return reconcile.ErrNotFound
	}
	return nil
}

// List filters, sorts and paginates patients. The total counts every row
// matching the filters, ignoring pagination.
func (s *SQLStore) List(ctx context.Context, q reconcile.ListQuery) ([]model.Patient, int64, error) {
	query := s.applyFilters(s.db.WithContext(ctx).Model(&model.Patient{}), q)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(orderClause(q.SortBy, q.SortDir))
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var patients []model.Patient
	if err := query.Find(&patients).Error; err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

func (s *SQLStore) applyFilters(query *gorm.DB, q reconcile.ListQuery) *gorm.DB {
	if q.Keyword != "" {
		kw := "%" + strings.TrimSpace(q.Keyword) + "%"
		query = query.Where("full_name_arabic LIKE ? OR full_name LIKE ? OR code LIKE ? OR diagnosis LIKE ?", kw, kw, kw, kw)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Gender != "" {
		query = query.Where("gender = ?", q.Gender)
	}
	if q.Month != "" {
		query = query.Where("visited_date LIKE ?", q.Month+"%")
	}
	if since, ok := groupByDateSince(q.GroupByDate, s.now()); ok {
		query = query.Where("created_at >= ?", since)
	}
	return query
}

// orderClause maps a sort request to a column; unknown fields fall back to
// newest first.
func orderClause(sortBy, sortDir string) string {
	dir := "ASC"
	if strings.ToLower(sortDir) == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case SortFullName:
		return fmt.Sprintf("full_name_arabic %s", dir)
	case SortCode:
		return fmt.Sprintf("code %s", dir)
	case SortVisitedDate:
		return fmt.Sprintf("visited_date %s", dir)
	case SortCreatedAt:
		return fmt.Sprintf("created_at %s", dir)
	default:
		return "created_at DESC"
	}
}

// GetAccountByEmail looks an account up by its lower-cased email.
func (s *SQLStore) GetAccountByEmail(ctx context.Context, email string) (model.UserAccount, error) {
	var account model.UserAccount
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&account).Error
	if err != nil {
		return model.UserAccount{}, translate(err, "")
	}
	return account, nil
}

// SaveAccount creates the account or updates the one with the same email.
func (s *SQLStore) SaveAccount(ctx context.Context, a *model.UserAccount) error {
	a.Email = normalizeEmail(a.Email)
	if a.Role == "" {
		a.Role = model.RoleUser
	}
	if !model.ValidRole(a.Role) {
		return fmt.Errorf("%w: unknown role %q", reconcile.ErrInvalidInput, a.Role)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.UserAccount
		err := tx.Where("email = ?", a.Email).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(a).Error
		case err != nil:
			return err
		}
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		return tx.Save(a).Error
	})
}

func ensureCodeAvailable(tx *gorm.DB, code, excludeID string) error {
	var holder model.Patient
	query := tx.Select("id").Where("code = ?", code)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.First(&holder).Error
	if err == nil {
		return &reconcile.DuplicateCodeError{Code: code, ConflictID: holder.ID}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// translate maps gorm errors onto the reconcile error set.
func translate(err error, code string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return reconcile.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &reconcile.DuplicateCodeError{Code: code}
	}
	return err
}
