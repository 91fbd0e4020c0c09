package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/reconcile"
	"github.com/A-tamer/hospital-management-system/util"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

// Context keys set by the middleware in this package.
const (
	BackendKey = "backend"
	AccountKey = "account"
)

// UserEmailHeader carries the caller identity asserted by the upstream
// identity proxy.
const UserEmailHeader = "X-User-Email"

// Backend bundles what handlers need from persistence.
type Backend struct {
	Patients      reconcile.PatientStore
	Accounts      reconcile.AccountStore
	ImportOptions []reconcile.ImporterOption
}

// accountLookups collapses concurrent store lookups for the same email.
var accountLookups singleflight.Group

func lookupAccount(c *gin.Context, accounts reconcile.AccountStore, email string) (model.UserAccount, error) {
	v, err, _ := accountLookups.Do(email, func() (interface{}, error) {
		return accounts.GetAccountByEmail(c.Request.Context(), email)
	})
	if err != nil {
		return model.UserAccount{}, err
	}
	return v.(model.UserAccount), nil
}

func setCorsHeaders(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE, PATCH")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, "+UserEmailHeader)
	c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
	c.Writer.Header().Set("Access-Control-Max-Age", "86400")
}

// CORSMiddleware configures CORS headers for incoming requests.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		setCorsHeaders(c)

		// For preflight requests, respond with 204 and abort further processing.
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// StoreMiddleware makes the backend available to handlers.
func StoreMiddleware(b Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(BackendKey, b)
		c.Next()
	}
}

func getBackend(c *gin.Context) (Backend, bool) {
	v, ok := c.Get(BackendKey)
	if !ok {
		return Backend{}, false
	}
	b, ok := v.(Backend)
	return b, ok
}

// GetStore returns the patient store, or nil when StoreMiddleware did not run.
func GetStore(c *gin.Context) reconcile.PatientStore {
	b, _ := getBackend(c)
	return b.Patients
}

// GetAccountStore returns the account store, or nil when none was injected.
func GetAccountStore(c *gin.Context) reconcile.AccountStore {
	b, _ := getBackend(c)
	return b.Accounts
}

// GetImportOptions returns the configured importer options.
func GetImportOptions(c *gin.Context) []reconcile.ImporterOption {
	b, _ := getBackend(c)
	return b.ImportOptions
}

// AccountMiddleware resolves the X-User-Email header into a known account.
// Requests without a header or from unknown emails are rejected with 401.
func AccountMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := strings.ToLower(strings.TrimSpace(c.GetHeader(UserEmailHeader)))
		if email == "" {
			util.LogUnauthorizedAccess("", c.ClientIP(), c.Request.URL.Path, "missing identity header")
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Unauthorized",
				Err: fmt.Errorf("missing %s header", UserEmailHeader),
			})
			c.Abort()
			return
		}

		if account, ok := util.AccountCacheGet(email); ok {
			c.Set(AccountKey, &account)
			c.Next()
			return
		}

		b, ok := getBackend(c)
		if !ok || b.Accounts == nil {
			util.CallServerError(c, util.APIErrorParams{
				Msg: "Account store not available",
				Err: errors.New("account store is nil"),
			})
			c.Abort()
			return
		}

		account, err := lookupAccount(c, b.Accounts, email)
		if errors.Is(err, reconcile.ErrNotFound) {
			util.LogUnauthorizedAccess(email, c.ClientIP(), c.Request.URL.Path, "unknown account")
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Unauthorized",
				Err: errors.New("unknown account"),
			})
			c.Abort()
			return
		}
		if err != nil {
			util.CallServerError(c, util.APIErrorParams{
				Msg: "Failed to resolve account",
				Err: err,
			})
			c.Abort()
			return
		}

		util.AccountCacheSet(account)
		c.Set(AccountKey, &account)
		c.Next()
	}
}

// GetAccount returns the account resolved by AccountMiddleware, or nil.
func GetAccount(c *gin.Context) *model.UserAccount {
	v, ok := c.Get(AccountKey)
	if !ok {
		return nil
	}
	account, _ := v.(*model.UserAccount)
	return account
}

// RequireAdmin rejects accounts without the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := GetAccount(c)
		if account == nil || account.Role != model.RoleAdmin {
			actor := ""
			if account != nil {
				actor = account.Email
			}
			util.LogUnauthorizedAccess(actor, c.ClientIP(), c.Request.URL.Path, "admin role required")
			c.AbortWithStatusJSON(http.StatusForbidden, util.APIResponse{
				Success: false,
				Error:   "admin role required",
				Msg:     "Forbidden",
			})
			return
		}
		c.Next()
	}
}
