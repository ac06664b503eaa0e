package core

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the event endpoints on router, keeping the trailing slashes clients use.
func RegisterRoutes(router gin.IRouter, h Handlers) {
	events := router.Group("/events")

	events.POST("/", h.PostEvents)
	events.GET("/", h.GetEvents)
	events.GET("/list_events/", h.ListOnlineEvents)
	events.POST("/bulk_create/", h.BulkCreateEvents)
	events.GET("/:id/", h.GetEvent)
	events.PUT("/:id/", h.UpdateEvent)
	events.PATCH("/:id/", h.PartialUpdateEvent)
}
