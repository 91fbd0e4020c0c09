package endpoint

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/A-tamer/hospital-management-system/middleware"
	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/reconcile"
	"github.com/A-tamer/hospital-management-system/util"
	"github.com/gin-gonic/gin"
)

// serviceFrom builds a patient service over the injected store. It writes a
// 500 response and returns false when no store is available.
func serviceFrom(c *gin.Context) (*reconcile.Service, bool) {
	store := middleware.GetStore(c)
	if store == nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Database connection not available",
			Err: fmt.Errorf("store is nil"),
		})
		return nil, false
	}
	return reconcile.NewService(store), true
}

// respondError maps reconcile errors onto response statuses.
func respondError(c *gin.Context, msg string, err error) {
	var dup *reconcile.DuplicateCodeError
	var missing *reconcile.MissingRequiredFieldError
	params := util.APIErrorParams{Msg: msg, Err: err}

	switch {
	case errors.As(err, &dup):
		util.CallConflict(c, params)
	case errors.Is(err, reconcile.ErrNotFound):
		params.Msg = "Patient not found"
		util.CallErrorNotFound(c, params)
	case errors.As(err, &missing), errors.Is(err, reconcile.ErrInvalidInput):
		util.CallUserError(c, params)
	default:
		log := util.Logger()
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(msg)
		util.CallServerError(c, params)
	}
}

// viewsFinancial reports whether the caller may see surgery costs.
func viewsFinancial(c *gin.Context) bool {
	return middleware.GetAccount(c).ViewsFinancial()
}

func actorEmail(c *gin.Context) string {
	if account := middleware.GetAccount(c); account != nil {
		return account.Email
	}
	return ""
}

// present redacts cost fields for callers without financial access.
func present(c *gin.Context, p model.Patient) model.Patient {
	if viewsFinancial(c) {
		return p
	}
	return p.WithoutFinancial()
}

func presentAll(c *gin.Context, ps []model.Patient) []model.Patient {
	out := make([]model.Patient, len(ps))
	for i, p := range ps {
		out[i] = present(c, p)
	}
	return out
}

// intParam reads a positive integer path parameter, writing a 400 on failure.
func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n < 0 {
		util.CallUserError(c, util.APIErrorParams{
			Msg: fmt.Sprintf("Invalid %s", name),
			Err: fmt.Errorf("%s must be a non-negative integer", name),
		})
		return 0, false
	}
	return n, true
}

func audit(c *gin.Context, event util.AuditEventType, msg string, details map[string]interface{}) {
	util.LogAuditEvent(util.AuditEvent{
		EventType: event,
		Actor:     actorEmail(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Message:   msg,
		Details:   details,
	})
}
