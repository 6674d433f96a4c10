package routes

import (
	"github.com/gin-gonic/gin"
)

// WebSocketRoutes authenticates through the token query parameter since
// browsers cannot set headers on the upgrade request.
func WebSocketRoutes(r *gin.Engine, d Deps) {
	if d.Hub == nil {
		return
	}
	wsRoutes := r.Group("/ws")
	{
		wsRoutes.GET("/buses", d.Hub.HandleBusUpdates(d.Auth))
	}
}
