package endpoint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/A-tamer/hospital-management-system/middleware"
	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/reconcile"
	"github.com/A-tamer/hospital-management-system/util"
	"github.com/gin-gonic/gin"
)

type upsertAccountRequest struct {
	Email            string `json:"email" binding:"required" example:"dr.sara@example.com"`
	Name             string `json:"name" example:"Dr. Sara"`
	Role             string `json:"role" example:"doctor"`
	CanViewFinancial bool   `json:"canViewFinancial" example:"false"`
}

// GetCurrentAccount returns the account resolved from the identity header.
func GetCurrentAccount(c *gin.Context) {
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Account retrieved",
		Data: middleware.GetAccount(c),
	})
}

// UpsertAccount godoc
// @Summary      Create or update a staff account
// @Description  Admin only. Accounts are keyed by email.
// @Tags         Account
// @Accept       json
// @Produce      json
// @Param        request body upsertAccountRequest true "Account"
// @Success      200 {object} util.APIResponse{data=model.UserAccount} "Account saved"
// @Failure      400 {object} util.APIResponse "Invalid request"
// @Failure      403 {object} util.APIResponse "Forbidden"
// @Router       /account [post]
func UpsertAccount(c *gin.Context) {
	var req upsertAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid request body", Err: err})
		return
	}

	accounts := middleware.GetAccountStore(c)
	if accounts == nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Account store not available",
			Err: errors.New("account store is nil"),
		})
		return
	}

	account := model.UserAccount{
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		Name:             util.NormalizeName(req.Name),
		Role:             req.Role,
		CanViewFinancial: req.CanViewFinancial,
	}
	if err := accounts.SaveAccount(c.Request.Context(), &account); err != nil {
		if errors.Is(err, reconcile.ErrInvalidInput) {
			util.CallUserError(c, util.APIErrorParams{Msg: "Invalid account", Err: err})
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to save account", Err: err})
		return
	}
	util.AccountCacheInvalidate(account.Email)

	audit(c, util.EventAccountSaved, fmt.Sprintf("account %s saved with role %s", account.Email, account.Role), map[string]interface{}{
		"email":            account.Email,
		"role":             account.Role,
		"canViewFinancial": account.CanViewFinancial,
	})
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Account saved", Data: account})
}
