package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bus_tracker/internal/controllers"
	"bus_tracker/internal/middleware"
)

// Deps carries the handlers the router mounts.
type Deps struct {
	Auth     *middleware.Auth
	Tracking *controllers.TrackingController
	Routes   *controllers.RouteController
	Buses    *controllers.BusController
	Hub      *controllers.LocationHub
	Metrics  http.Handler

	// Middleware runs before every route, e.g. request logging.
	Middleware []gin.HandlerFunc
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(d.Middleware...)
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	BusRoutes(r, d)
	AdminRoutes(r, d)
	WebSocketRoutes(r, d)

	return r
}
