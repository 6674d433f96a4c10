package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/middleware"
)

func BusRoutes(r *gin.Engine, d Deps) {
	authed := r.Group("/", d.Auth.RequireAuth())
	{
		authed.GET("/buses/:id/status", d.Tracking.GetBusStatus)
		authed.GET("/routes/:id/waypoints", d.Tracking.GetWaypoints)
	}

	bus := r.Group("/buses/:id", d.Auth.RequireAuth(), middleware.RequireBusAccess())
	{
		bus.POST("/location", d.Tracking.UpdateLocation)
		bus.GET("/location-history", d.Tracking.GetLocationHistory)
	}
}
