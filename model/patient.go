package model

import (
	"time"

	"gorm.io/datatypes"
)

// Gender values accepted on a patient record.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

// Status values tracking where a patient is in the surgical pathway.
const (
	StatusDiagnosed = "Diagnosed"
	StatusPreOp     = "Pre-op"
	StatusOp        = "Op"
	StatusPostOp    = "Post-op"
)

// UndiagnosedLabel is the legacy single-diagnosis value used when a patient
// has no diagnoses yet.
const UndiagnosedLabel = "Undiagnosed"

// Statuses lists every valid status in pathway order.
var Statuses = []string{StatusDiagnosed, StatusPreOp, StatusOp, StatusPostOp}

// Patient represents a patient record
// @Description Patient record information
type Patient struct {
	ID             string                          `json:"id,omitempty" gorm:"primaryKey;size:36" example:"2f1c9a4e-5d0b-4c36-9a7e-0d4b7a1f2c3d"`
	Code           string                          `json:"code" gorm:"uniqueIndex;size:32;not null" example:"2024/11/0001"`
	FullNameArabic string                          `json:"fullNameArabic" gorm:"column:full_name_arabic;size:255;index" example:"علي حسن"`
	FullName       string                          `json:"fullName,omitempty" gorm:"column:full_name;size:255" example:"Ali Hassan"`
	DateOfBirth    string                          `json:"dateOfBirth,omitempty" gorm:"column:date_of_birth;size:10" example:"2019-03-14"`
	Age            float64                         `json:"age" example:"5"`
	Gender         string                          `json:"gender" gorm:"size:16;index" example:"Male"`
	Diagnoses      datatypes.JSONSlice[string]     `json:"diagnoses"`
	Diagnosis      string                          `json:"diagnosis" gorm:"size:255" example:"Hypospadias"`
	Status         string                          `json:"status" gorm:"size:16;index" example:"Diagnosed"`
	VisitedDate    string                          `json:"visitedDate" gorm:"column:visited_date;size:32;index" example:"2024-11-05"`
	AdmissionDate  string                          `json:"admissionDate" gorm:"column:admission_date;size:32" example:"2024-11-05"`
	Surgeries      datatypes.JSONSlice[Surgery]    `json:"surgeries"`
	FollowUps      datatypes.JSONSlice[FollowUp]   `json:"followUps" gorm:"column:follow_ups"`
	Files          datatypes.JSONSlice[Attachment] `json:"files,omitempty"`
	ContactInfo    datatypes.JSONMap               `json:"contactInfo,omitempty" gorm:"column:contact_info"`
	PlannedSurgery datatypes.JSONMap               `json:"plannedSurgery,omitempty" gorm:"column:planned_surgery"`
	Notes          string                          `json:"notes,omitempty" gorm:"type:text"`
	Extra          datatypes.JSONMap               `json:"extra,omitempty"`
	CreatedAt      time.Time                       `json:"createdAt" gorm:"autoCreateTime:false;index"`
	UpdatedAt      time.Time                       `json:"updatedAt" gorm:"autoUpdateTime:false"`
}

// Surgery represents one operation performed on a patient
type Surgery struct {
	Date      string   `json:"date" mapstructure:"date"`
	Type      string   `json:"type" mapstructure:"type"`
	Operation string   `json:"operation,omitempty" mapstructure:"operation"`
	Surgeons  []string `json:"surgeons,omitempty" mapstructure:"surgeons"`
	Notes     string   `json:"notes,omitempty" mapstructure:"notes"`
	Cost      float64  `json:"cost,omitempty" mapstructure:"cost"`
	Currency  string   `json:"currency,omitempty" mapstructure:"currency"`
}

// FollowUp represents a numbered follow-up visit. Numbers start at 1 and
// have no gaps.
type FollowUp struct {
	Number int      `json:"number" mapstructure:"number"`
	Date   string   `json:"date" mapstructure:"date"`
	Notes  string   `json:"notes" mapstructure:"notes"`
	Photos []string `json:"photos,omitempty" mapstructure:"photos"`
}

// Attachment is metadata for an uploaded file; the binary lives in external storage.
type Attachment struct {
	Name       string `json:"name" mapstructure:"name"`
	URL        string `json:"url" mapstructure:"url"`
	Type       string `json:"type,omitempty" mapstructure:"type"`
	UploadedAt string `json:"uploadedAt,omitempty" mapstructure:"uploadedAt"`
}

// TotalSurgeryCost sums the recorded surgery costs of the patient.
func (p Patient) TotalSurgeryCost() float64 {
	var total float64
	for _, s := range p.Surgeries {
		total += s.Cost
	}
	return total
}

// WithoutFinancial returns a copy of the patient with cost fields cleared.
func (p Patient) WithoutFinancial() Patient {
	if len(p.Surgeries) == 0 {
		return p
	}
	surgeries := make(datatypes.JSONSlice[Surgery], len(p.Surgeries))
	for i, s := range p.Surgeries {
		s.Cost = 0
		s.Currency = ""
		surgeries[i] = s
	}
	p.Surgeries = surgeries
	return p
}

// UpdatePatientRequest represents a partial patient update. Only non-nil
// fields are applied.
// @Description Partial patient update
type UpdatePatientRequest struct {
	Code           *string                `json:"code,omitempty" example:"2024/11/0007"`
	FullNameArabic *string                `json:"fullNameArabic,omitempty" example:"علي حسن"`
	FullName       *string                `json:"fullName,omitempty" example:"Ali Hassan"`
	DateOfBirth    *string                `json:"dateOfBirth,omitempty" example:"2019-03-14"`
	Age            *float64               `json:"age,omitempty" example:"5"`
	Gender         *string                `json:"gender,omitempty" example:"Female"`
	Diagnoses      []string               `json:"diagnoses,omitempty" example:"Hypospadias"`
	Status         *string                `json:"status,omitempty" example:"Pre-op"`
	VisitedDate    *string                `json:"visitedDate,omitempty" example:"2024-11-05"`
	ContactInfo    map[string]interface{} `json:"contactInfo,omitempty"`
	PlannedSurgery map[string]interface{} `json:"plannedSurgery,omitempty"`
	Notes          *string                `json:"notes,omitempty"`
	Files          []Attachment           `json:"files,omitempty"`
}
