package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Публичные маршруты
	api.GET("/system/health", h.healthCheck)
	api.POST("/missions/verify", h.verifyMission)

	secured := api.Group("")
	secured.Use(AuthMiddleware(h.cfg, h.missionService, h.logger))

	staff := RequireStaff()

	// Инциденты
	sos := secured.Group("/sos")
	{
		sos.POST("", h.createIncident)
		sos.GET("", staff, h.listIncidents)
		sos.GET("/stats", staff, h.getStats)
		sos.GET("/:id", h.getIncident)
		sos.POST("/:id/assign", staff, h.assignRescuer)
		sos.PATCH("/:id/status", h.updateStatus)
		sos.POST("/:id/location", h.limitLocation(), h.recordLocation)
		sos.POST("/:id/messages", h.sendMessage)
		sos.GET("/:id/messages", h.listMessages)
		sos.POST("/:id/dispatch", staff, h.dispatchIncident)
		sos.GET("/:id/missions", staff, h.listMissions)
		sos.DELETE("/:id/missions", staff, h.revokeIncidentMissions)
		sos.GET("/:id/participants", staff, h.listParticipants)
		sos.DELETE("/:id/participants/:userId", staff, h.evictParticipant)
	}

	secured.GET("/dispatch/nearest", staff, h.nearestHQ)

	// Миссии
	missions := secured.Group("/missions", staff)
	{
		missions.POST("", h.issueMission)
		missions.DELETE("/:missionId", h.revokeMission)
	}

	// Реальное время
	rt := secured.Group("/realtime")
	{
		rt.GET("/connect", h.connect)
		rt.POST("/connections/:connId/rooms/:id", h.joinRoom)
		rt.DELETE("/connections/:connId/rooms/:id", h.leaveRoom)
		rt.POST("/connections/:connId/rooms/:id/location", h.limitLocation(), h.inboundLocation)
		rt.POST("/connections/:connId/rooms/:id/messages", h.inboundMessage)
	}
}
