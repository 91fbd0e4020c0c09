package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Roles a user account can hold.
const (
	RoleAdmin  = "admin"
	RoleDoctor = "doctor"
	RoleUser   = "user"
)

// UserAccount represents a clinic staff account
// @Description Clinic staff account
type UserAccount struct {
	ID               uint      `json:"id" gorm:"primaryKey;autoIncrement" example:"1"`
	Email            string    `json:"email" gorm:"uniqueIndex;size:191;not null" example:"dr.sara@example.com"`
	Name             string    `json:"name" gorm:"size:255" example:"Dr. Sara"`
	Role             string    `json:"role" gorm:"size:16;not null;default:user" example:"doctor"`
	CanViewFinancial bool      `json:"canViewFinancial" gorm:"column:can_view_financial;default:false" example:"false"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ValidRole reports whether role is one of the known account roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RoleUser:
		return true
	}
	return false
}

// ViewsFinancial reports whether the account may see cost fields.
// Admins always can.
func (a *UserAccount) ViewsFinancial() bool {
	if a == nil {
		return false
	}
	return a.Role == RoleAdmin || a.CanViewFinancial
}

// SeedAdminAccount creates the bootstrap admin account if it does not exist yet.
func SeedAdminAccount(db *gorm.DB, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	var existing UserAccount
	// Check if the account already exists.
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	account := UserAccount{
		Email:            email,
		Name:             "Administrator",
		Role:             RoleAdmin,
		CanViewFinancial: true,
	}
	if err := db.Create(&account).Error; err != nil {
		return fmt.Errorf("failed to seed admin %s: %w", email, err)
	}
	return nil
}
