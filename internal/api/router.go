package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mesikahq/clinic-desk/internal/auth"
	"github.com/mesikahq/clinic-desk/internal/middleware"
)

type Router struct {
	handler        *Handler
	authMiddleware *auth.Middleware
	corsOrigin     string
}

func NewRouter(handler *Handler, authService auth.Service, corsOrigin string) *Router {
	return &Router{
		handler:        handler,
		authMiddleware: auth.NewMiddleware(authService),
		corsOrigin:     corsOrigin,
	}
}

func (r *Router) SetupRouter(logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.RequestID(),
		middleware.SecurityHeaders(),
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.RateLimit(rate.Every(time.Second/30), 30),
		middleware.CORS(r.corsOrigin),
		middleware.AuditContext(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "ts": time.Now().UTC()})
	})

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/signup", r.handler.Signup)
			authRoutes.POST("/login", r.handler.Login)
		}

		protected := api.Group("")
		protected.Use(r.authMiddleware.RequireRoles())
		{
			patients := protected.Group("/patients")
			{
				patients.POST("", r.handler.CreatePatient)
				patients.GET("", r.handler.SearchPatients)
				patients.GET("/:id", r.handler.GetPatient)
				patients.POST("/:id/visits", r.handler.AddVisit)
				patients.GET("/:id/visits", r.handler.ListVisits)
				patients.POST("/:id/visits/:vid/reports", r.handler.UploadReport)
				patients.GET("/:id/visits/:vid/reports", r.handler.ListReports)
				patients.GET("/:id/visits/:vid/reports/:rid/download", r.handler.DownloadReport)
				patients.DELETE("/:id/visits/:vid/reports/:rid", r.handler.DeleteReport)
			}

			suggestions := protected.Group("/suggestions")
			{
				suggestions.GET("", r.handler.QuerySuggestions)
				suggestions.POST("", r.handler.UpsertSuggestion)
				suggestions.POST("/bulk", r.handler.BulkUpsertSuggestions)
			}
		}

		auditRoutes := api.Group("/audit")
		auditRoutes.Use(r.authMiddleware.RequireRoles(auth.RoleAdmin))
		{
			auditRoutes.GET("", r.handler.ListAuditEvents)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"kind": KindNotFound, "message": "endpoint not found"})
	})

	return router
}
