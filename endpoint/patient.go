package endpoint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/reconcile"
	"github.com/A-tamer/hospital-management-system/util"
	"github.com/gin-gonic/gin"
)

func parseQueryParams(c *gin.Context) reconcile.ListQuery {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return reconcile.ListQuery{
		Keyword:     strings.TrimSpace(c.Query("keyword")),
		Status:      c.Query("status"),
		Gender:      c.Query("gender"),
		GroupByDate: c.Query("group_by_date"),
		Month:       c.Query("month"),
		SortBy:      c.Query("sort"),                      // full_name, code, visited_date, created_at
		SortDir:     strings.ToLower(c.Query("sort_dir")), // asc, desc
		Limit:       limit,
		Offset:      offset,
	}
}

// ListPatients godoc
// @Summary      List patients
// @Description  Get a paginated list of patients with optional filtering
// @Tags         Patient
// @Produce      json
// @Param        limit query int false "Limit number of results"
// @Param        offset query int false "Offset for pagination"
// @Param        keyword query string false "Search in name, code and diagnosis"
// @Param        status query string false "Diagnosed|Pre-op|Op|Post-op"
// @Param        gender query string false "Male|Female|Other"
// @Param        month query string false "Visit month YYYY-MM"
// @Param        group_by_date query string false "last_2_days, last_3_months, last_6_months"
// @Param        sort query string false "full_name|code|visited_date|created_at"
// @Param        sort_dir query string false "asc|desc"
// @Success      200 {object} util.APIResponse{data=object} "Patients retrieved"
// @Router       /patient [get]
func ListPatients(c *gin.Context) {
	svc, ok := serviceFrom(c)
	if !ok {
		return
	}

	patients, total, err := svc.List(c.Request.Context(), parseQueryParams(c))
	if err != nil {
		respondError(c, "Failed to retrieve patients", err)
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Patients retrieved",
		Data: map[string]interface{}{"total": total, "total_fetched": len(patients), "patients": presentAll(c, patients)},
	})
}

// NextPatientCode returns the code the next manually created patient gets.
func NextPatientCode(c *gin.Context) {
	svc, ok := serviceFrom(c)
	if !ok {
		return
	}

	code, err := svc.NextCode(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to allocate patient code", err)
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Next patient code",
		Data: map[string]interface{}{"code": code},
	})
}

// CreatePatient godoc
// @Summary      Create a new patient
// @Description  Register a patient from the intake form. A blank code is allocated.
// @Tags         Patient
// @Accept       json
// @Produce      json
// @Success      201 {object} util.APIResponse{data=model.Patient} "Patient created"
// @Failure      400 {object} util.APIResponse "Invalid request"
// @Failure      409 {object} util.APIResponse "Code already registered"
// @Router       /patient [post]
func CreatePatient(c *gin.Context) {
	raw := reconcile.RawRecord{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid request body",
			Err: err,
		})
		return
	}

	svc, ok := serviceFrom(c)
	if !ok {
		return
	}

	patient, err := svc.Create(c.Request.Context(), raw)
	if err != nil {
		respondError(c, "Failed to create patient", err)
		return
	}

	audit(c, util.EventPatientCreated, fmt.Sprintf("patient %s created", patient.Code), map[string]interface{}{
		"id":   patient.ID,
		"code": patient.Code,
	})
	util.CallCreated(c, util.APISuccessParams{
		Msg:  "Patient created",
		Data: present(c, patient),
	})
}

// GetPatientInfo godoc
// @Summary      Get patient information
// @Tags         Patient
// @Produce      json
// @Param        id path string true "Patient ID"
// @Success      200 {object} util.APIResponse{data=model.Patient} "Patient retrieved"
// @Failure      404 {object} util.APIResponse "Patient not found"
// @Router       /patient/{id} [get]
func GetPatientInfo(c *gin.Context) {
	svc, ok := serviceFrom(c)
	if !ok {
		return
	}

	patient, err := svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to retrieve patient", err)
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Patient retrieved",
		Data: present(c, patient),
	})
}

// UpdatePatient godoc
// @Summary      Update patient information
// @Description  Merge the provided fields into the stored record
// @Tags         Patient
// @Accept       json
// @Produce      json
// @Param        id path string true "Patient ID"
// @Param        request body model.UpdatePatientRequest true "Fields to change"
// @Success      200 {object} util.APIResponse{data=model.Patient} "Patient updated"
// @Failure      400 {object} util.APIResponse "Invalid request"
// @Failure      404 {object} util.APIResponse "Patient not found"
// @Failure      409 {object} util.APIResponse "Code already registered"
// @Router       /patient/{id} [patch]
func UpdatePatient(c *gin.Context) {
	req := model.UpdatePatientRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid request body",
			Err: err,
		})
		return
	}

	svc, ok := serviceFrom(c)
	if !ok {
		return
	}

	patient, err := svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "Failed to update patient", err)
		return
	}

	audit(c, util.EventPatientUpdated, fmt.Sprintf("patient %s updated", patient.Code), map[string]interface{}{
		"id":   patient.ID,
		"code": patient.Code,
	})
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Patient updated",
		Data: present(c, patient),
	})
}

// DeletePatient godoc
// @Summary      Delete a patient
// @Description  Permanently delete a patient by ID
// @Tags         Patient
// @Produce      json
// @Param        id path string true "Patient ID"
// @Success      200 {object} util.APIResponse "Patient deleted"
// @Failure      404 {object} util.APIResponse "Patient not found"
// @Router       /patient/{id} [delete]
func DeletePatient(c *gin.Context) {
	svc, ok := serviceFrom(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, "Failed to delete patient", err)
		return
	}

	audit(c, util.EventPatientDeleted, fmt.Sprintf("patient %s deleted", id), map[string]interface{}{"id": id})
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Patient deleted",
	})
}
