package main

import (
	"database/sql"
	"net/http"
	"time"

	"remit-backoffice/internal/admin"
	"remit-backoffice/internal/audit"
	"remit-backoffice/internal/auth"
	"remit-backoffice/internal/rbac"
	"remit-backoffice/internal/records"
	"remit-backoffice/internal/requestctx"
	"remit-backoffice/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	Auth     *auth.Manager
	Contexts requestctx.Store
	Exec     records.Executor
	Schema   records.Schema
	Audit    *audit.Service
	DB       *sql.DB
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", loginHandler(deps.Auth))

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.Auth))
	v1.Use(requestctx.Middleware(deps.Contexts))
	{
		// Identity echo, handy for integration smoke tests.
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			oid, _ := auth.OrganisationID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "organisation_id": oid, "role": role})
		})

		// ADMIN routes: generic entity CRUD, audited via the interceptor.
		// Only owner/super_admin can mutate back-office entities.
		adminGroup := v1.Group("/admin")
		adminGroup.Use(rbac.RequireOrganisation())
		adminGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin))
		{
			h := admin.Handlers{Exec: deps.Exec, Schema: deps.Schema}
			adminGroup.POST("/:kind", h.Create)
			adminGroup.PATCH("/:kind/:id", h.Update)
			adminGroup.DELETE("/:kind/:id", h.Delete)
			adminGroup.GET("/:kind/:id", h.Get)
		}

		// AUDIT routes: read-only trail access for compliance review.
		auditGroup := v1.Group("/audit")
		auditGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin, rbac.RoleAuditor))
		{
			h := audit.Handlers{Service: deps.Audit}
			auditGroup.GET("", h.List)
			auditGroup.GET("/stats", h.GetStats)
		}
	}
}

type loginRequest struct {
	UserID         string `json:"user_id"`
	OrganisationID string `json:"organisation_id"`
	Role           string `json:"role"`
}

// loginHandler issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func loginHandler(m *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
			return
		}
		if req.UserID == "" || req.OrganisationID == "" || req.Role == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "user_id, organisation_id, role required"})
			return
		}
		pair, err := m.IssuePair(time.Now(), req.UserID, req.OrganisationID, req.Role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "token issuance failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "tokens issued", "data": pair})
	}
}
