package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/middleware"
)

func AdminRoutes(r *gin.Engine, d Deps) {
	admin := r.Group("/admin")
	admin.Use(d.Auth.RequireAuth(), middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.POST("/routes", d.Routes.CreateRoute)
		admin.GET("/routes/:id", d.Routes.GetRoute)
		admin.PUT("/routes/:id/stops", d.Routes.ReplaceStops)

		admin.POST("/buses", d.Buses.CreateBus)
		admin.PUT("/buses/:id/route", d.Buses.AssignRoute)
		admin.POST("/buses/:id/reset", d.Tracking.ResetBus)
	}
}
