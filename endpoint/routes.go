package endpoint

import (
	"fmt"
	"net/http"

	"github.com/A-tamer/hospital-management-system/middleware"
	"github.com/gin-gonic/gin"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AppName   string
	Backend   middleware.Backend
	ImportLimit middleware.RateLimitConfig
}

// NewRouter wires middleware and every route onto a fresh gin engine.
func NewRouter(opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.StoreMiddleware(opts.Backend))

	// Basic HTTP handler for root path
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Welcome to %s!", opts.AppName),
		})
	})

	authed := router.Group("/")
	authed.Use(middleware.AccountMiddleware())
	authed.Use(middleware.EndpointCallLogger())

	authed.GET("/account", GetCurrentAccount)
	authed.POST("/account", middleware.RequireAdmin(), UpsertAccount)

	patient := authed.Group("/patient")
	patient.GET("", ListPatients)
	patient.POST("", CreatePatient)
	patient.GET("/next-code", NextPatientCode)
	patient.GET("/export", ExportPatients)
	patient.POST("/import", middleware.RateLimiter(opts.ImportLimit), ImportPatients)
	patient.GET("/:id", GetPatientInfo)
	patient.PATCH("/:id", UpdatePatient)
	patient.DELETE("/:id", DeletePatient)
	patient.POST("/:id/follow-up", AddFollowUp)
	patient.DELETE("/:id/follow-up/:number", RemoveFollowUp)
	patient.POST("/:id/surgery", AddSurgery)
	patient.DELETE("/:id/surgery/:index", RemoveSurgery)

	authed.GET("/dashboard", GetDashboard)
	return router
}
