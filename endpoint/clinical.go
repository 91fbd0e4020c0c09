package endpoint

import (
	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/util"
	"github.com/gin-gonic/gin"
)

// AddFollowUp appends a follow-up visit; its number is assigned by position.
func AddFollowUp(c *gin.Context) {
	var followUp model.FollowUp
	if err := c.ShouldBindJSON(&followUp); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid request body", Err: err})
		return
	}

	svc, ok := serviceFrom(c)
	if !ok {
		return
	}

	patient, err := svc.AddFollowUp(c.Request.Context(), c.Param("id"), followUp)
	if err != nil {
		respondError(c, "Failed to add follow-up", err)
		return
	}
	util.CallCreated(c, util.APISuccessParams{Msg: "Follow-up added", Data: present(c, patient)})
}

// RemoveFollowUp deletes a follow-up by number and renumbers the rest.
func RemoveFollowUp(c *gin.Context) {
	number, ok := intParam(c, "number")
	if !ok {
		return
	}

	svc, ok := serviceFrom(c)
	if !ok {
		return
	}

	patient, err := svc.RemoveFollowUp(c.Request.Context(), c.Param("id"), number)
	if err != nil {
		respondError(c, "Failed to remove follow-up", err)
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Follow-up removed", Data: present(c, patient)})
}

// AddSurgery appends a surgery. Cost fields are dropped for callers without
// financial access.
func AddSurgery(c *gin.Context) {
	var surgery model.Surgery
	if err := c.ShouldBindJSON(&surgery); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid request body", Err: err})
		return
	}
	if !viewsFinancial(c) {
		surgery.Cost = 0
		surgery.Currency = ""
	}

	svc, ok := serviceFrom(c)
	if !ok {
		return
	}

	patient, err := svc.AddSurgery(c.Request.Context(), c.Param("id"), surgery)
	if err != nil {
		respondError(c, "Failed to add surgery", err)
		return
	}
	util.CallCreated(c, util.APISuccessParams{Msg: "Surgery added", Data: present(c, patient)})
}

// RemoveSurgery deletes the surgery at the given zero-based index.
func RemoveSurgery(c *gin.Context) {
	index, ok := intParam(c, "index")
	if !ok {
		return
	}

	svc, ok := serviceFrom(c)
	if !ok {
		return
	}

	patient, err := svc.RemoveSurgery(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		respondError(c, "Failed to remove surgery", err)
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Surgery removed", Data: present(c, patient)})
}
