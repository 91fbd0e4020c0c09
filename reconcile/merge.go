package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/util"
	"gorm.io/datatypes"
)

// ApplyUpdate merges the non-nil fields of req into a copy of existing and
// recomputes the derived fields. existing is not modified.
func ApplyUpdate(existing model.Patient, req model.UpdatePatientRequest, now time.Time) (model.Patient, error) {
	p := existing

	if req.Code != nil {
		code := strings.TrimSpace(*req.Code)
		if code == "" {
			return model.Patient{}, fmt.Errorf("%w: code cannot be empty", ErrInvalidInput)
		}
		p.Code = code
	}
	if req.FullNameArabic != nil {
		name := util.NormalizeName(*req.FullNameArabic)
		if name == "" {
			return model.Patient{}, &MissingRequiredFieldError{Field: fieldFullNameArabic}
		}
		p.FullNameArabic = name
	}
	if req.FullName != nil {
		p.FullName = util.NormalizeName(*req.FullName)
	}
	if req.Gender != nil {
		p.Gender = ResolveGender(*req.Gender)
	}
	if req.Status != nil {
		p.Status = ResolveStatus(*req.Status, Manual)
	}
	if req.Diagnoses != nil {
		p.Diagnoses = datatypes.JSONSlice[string](stringList(req.Diagnoses))
	}
	if req.VisitedDate != nil {
		p.VisitedDate = strings.TrimSpace(*req.VisitedDate)
	}
	if req.DateOfBirth != nil {
		p.DateOfBirth = strings.TrimSpace(*req.DateOfBirth)
	}
	if req.Age != nil {
		if *req.Age < 0 {
			return model.Patient{}, fmt.Errorf("%w: age cannot be negative", ErrInvalidInput)
		}
		p.Age = *req.Age
	}
	if req.Notes != nil {
		p.Notes = *req.Notes
	}
	if req.Files != nil {
		p.Files = datatypes.JSONSlice[model.Attachment](append([]model.Attachment(nil), req.Files...))
	}
	if req.ContactInfo != nil {
		p.ContactInfo = mergeMap(existing.ContactInfo, req.ContactInfo)
	}
	if req.PlannedSurgery != nil {
		p.PlannedSurgery = mergeMap(existing.PlannedSurgery, req.PlannedSurgery)
	}

	return Derive(p, now), nil
}

// Derive recomputes the fields that are projections of others: the legacy
// diagnosis, the admission date mirror, the age and follow-up numbering.
func Derive(p model.Patient, now time.Time) model.Patient {
	if p.Diagnoses == nil {
		p.Diagnoses = datatypes.JSONSlice[string]{}
	}
	p.Diagnosis = PrimaryDiagnosis(p.Diagnoses)
	if p.VisitedDate == "" {
		p.VisitedDate = now.Format(isoDate)
	}
	p.AdmissionDate = p.VisitedDate
	if p.DateOfBirth != "" {
		if dob, err := time.Parse(isoDate, p.DateOfBirth); err == nil {
			p.Age = AgeAt(dob, now)
		}
	}
	p.FollowUps = datatypes.JSONSlice[model.FollowUp](Renumber(p.FollowUps))
	if p.Surgeries == nil {
		p.Surgeries = datatypes.JSONSlice[model.Surgery]{}
	}
	p.UpdatedAt = now
	return p
}

// mergeMap overlays patch on base; a nil value in patch removes the key.
func mergeMap(base datatypes.JSONMap, patch map[string]interface{}) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range base {
		out[k] = copyValue(v)
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = copyValue(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
