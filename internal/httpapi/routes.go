package httpapi

import (
	"hotel-directory/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register wires HTTP routes to handlers.
// authMW must verify the bearer token and put the identity on the request context.
func Register(r gin.IRouter, h Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", h.Healthz)

	authGroup := r.Group("/auth")
	authGroup.Use(authMW)
	{
		authGroup.POST("/logout", h.Logout)
	}

	// ADMIN routes
	logs := r.Group("/activity-logs")
	logs.Use(authMW, rbac.RequireAnyRole(rbac.RoleAdmin))
	{
		logs.GET("", h.ListActivity)
		logs.GET("/stats", h.ActivityStats)
		logs.GET("/by-action/:action", h.ListActivityByAction)
		logs.GET("/by-user/:userId", h.ListActivityByUser)
		logs.DELETE("/cleanup", h.CleanupActivity)
	}
}
