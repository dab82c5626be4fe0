package v1

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/realtime"
	"github.com/sirupsen/logrus"
)

const defaultHeartbeatInterval = 25 * time.Second

// @Summary Open a real-time stream
// @Description Server-Sent Events stream. The first control frame carries the connection ID used to join rooms. dashboard=true also receives sos:created and sos:status-changed of every incident.
// @Tags Realtime
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Security BearerAuth
// @Security MissionToken
// @Param dashboard query bool false "Subscribe to the dashboard feed"
// @Success 200 {string} string "event stream"
// @Failure 403 {object} map[string]string "Dashboard feed not allowed"
// @Router /realtime/connect [get]
func (h *Handler) connect(c *gin.Context) {
	p := principalFrom(c)
	log := h.logger.WithFields(logrus.Fields{"method": "connect", "principal": p.ID})

	dashboard := c.Query("dashboard") == "true"
	if dashboard && !p.IsStaff() && p.Role != models.RoleDashboard {
		writeError(c, log, apperror.NewForbidden("dashboard feed requires a dashboard or dispatcher role"))
		return
	}

	opts := []realtime.ConnectOption{realtime.WithCityScope(p.CityScope)}
	var expired <-chan time.Time
	if p.Mission != nil {
		opts = append(opts, realtime.WithExpiry(p.Mission.ExpiresAt))
		timer := time.NewTimer(time.Until(p.Mission.ExpiresAt))
		defer timer.Stop()
		expired = timer.C
	}

	conn := h.gateway.Connect(p.ID, p.Role, dashboard, opts...)
	defer h.gateway.Disconnect(conn.ID)

	interval := h.cfg.RealtimeHeartbeatInterval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-conn.Done():
			return false
		case <-expired:
			c.SSEvent(realtime.FrameControl, realtime.ControlMessage{Type: "mission:expired", ConnectionID: conn.ID})
			return false
		case frame := <-conn.Frames():
			c.SSEvent(frame.Name, frame.Data)
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"ts": time.Now().UTC()})
			return true
		}
	})
}

// ownConnection проверяет, что соединение принадлежит вызывающему
func (h *Handler) ownConnection(c *gin.Context, connectionID string) error {
	conn, err := h.gateway.Lookup(connectionID)
	if err != nil {
		return err
	}
	if conn.UserID != principalFrom(c).ID {
		return apperror.NewForbidden("connection belongs to another principal")
	}
	return nil
}

// @Summary Join an incident room
// @Tags Realtime
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Security MissionToken
// @Param connId path string true "Connection ID"
// @Param id path string true "Incident ID"
// @Success 200 {object} ParticipantResponse
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Connection or incident not found"
// @Router /realtime/connections/{connId}/rooms/{id} [post]
func (h *Handler) joinRoom(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	connID := c.Param("connId")
	log := h.logger.WithFields(logrus.Fields{"method": "joinRoom", "id": id, "connection_id": connID})

	if err := h.ownConnection(c, connID); err != nil {
		writeError(c, log, err)
		return
	}
	if _, err := h.authorizeIncident(c, id, models.CapabilityView); err != nil {
		writeError(c, log, err)
		return
	}

	participant, err := h.gateway.JoinRoom(connID, id)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ParticipantToResponse(participant))
}

// @Summary Leave an incident room
// @Tags Realtime
// @Security ApiKeyAuth
// @Security BearerAuth
// @Security MissionToken
// @Param connId path string true "Connection ID"
// @Param id path string true "Incident ID"
// @Success 204 "No Content"
// @Router /realtime/connections/{connId}/rooms/{id} [delete]
func (h *Handler) leaveRoom(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	connID := c.Param("connId")
	log := h.logger.WithFields(logrus.Fields{"method": "leaveRoom", "id": id, "connection_id": connID})

	if err := h.ownConnection(c, connID); err != nil {
		writeError(c, log, err)
		return
	}
	h.gateway.LeaveRoom(connID, id)
	c.Status(http.StatusNoContent)
}

// inbound проверяет, что кадр пришел от участника комнаты с нужным правом
func (h *Handler) inbound(c *gin.Context, method string, capability models.Capability) (uuid.UUID, *logrus.Entry, bool) {
	id, ok := parseIncidentID(c)
	if !ok {
		return uuid.Nil, nil, false
	}
	connID := c.Param("connId")
	log := h.logger.WithFields(logrus.Fields{"method": method, "id": id, "connection_id": connID})

	if _, err := h.gateway.AuthorizeInbound(connID, id, principalFrom(c).ID); err != nil {
		writeError(c, log, err)
		return uuid.Nil, nil, false
	}
	if _, err := h.authorizeIncident(c, id, capability); err != nil {
		writeError(c, log, err)
		return uuid.Nil, nil, false
	}
	return id, log, true
}

// @Summary Send a location frame through a room connection
// @Tags Realtime
// @Accept json
// @Produce json
// @Security BearerAuth
// @Security MissionToken
// @Param connId path string true "Connection ID"
// @Param id path string true "Incident ID"
// @Param location body LocationRequest true "Location"
// @Success 201 {object} LocationResponse
// @Failure 403 {object} map[string]string "Not a member of the room"
// @Failure 429 {object} map[string]string "Rate limit exceeded"
// @Router /realtime/connections/{connId}/rooms/{id}/location [post]
func (h *Handler) inboundLocation(c *gin.Context) {
	var input LocationRequest
	if !h.bind(c, h.logger.WithField("method", "inboundLocation"), &input) {
		return
	}
	id, log, ok := h.inbound(c, "inboundLocation", models.CapabilitySendLocation)
	if !ok {
		return
	}
	h.saveLocation(c, log, id, input)
}

// @Summary Send a message frame through a room connection
// @Tags Realtime
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Security MissionToken
// @Param connId path string true "Connection ID"
// @Param id path string true "Incident ID"
// @Param message body MessageRequest true "Message"
// @Success 201 {object} MessageResponse
// @Failure 403 {object} map[string]string "Not a member of the room"
// @Router /realtime/connections/{connId}/rooms/{id}/messages [post]
func (h *Handler) inboundMessage(c *gin.Context) {
	var input MessageRequest
	if !h.bind(c, h.logger.WithField("method", "inboundMessage"), &input) {
		return
	}
	id, log, ok := h.inbound(c, "inboundMessage", models.CapabilitySendMessage)
	if !ok {
		return
	}
	h.saveMessage(c, log, id, input)
}

// @Summary List live room participants
// @Tags Realtime
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {array} ParticipantResponse
// @Router /sos/{id}/participants [get]
func (h *Handler) listParticipants(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	if _, err := h.authorizeIncident(c, id, models.CapabilityUpdateStatus); err != nil {
		writeError(c, h.logger.WithField("method", "listParticipants").WithField("id", id), err)
		return
	}
	c.JSON(http.StatusOK, ParticipantsToResponses(h.gateway.ListActive(id)))
}

// @Summary Evict a user from an incident room
// @Description Removes every connection of the user from the room; their inbound frames to it are rejected afterwards.
// @Tags Realtime
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Param userId path string true "User ID"
// @Success 200 {object} map[string]int "Number of evicted connections"
// @Router /sos/{id}/participants/{userId} [delete]
func (h *Handler) evictParticipant(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	if _, err := h.authorizeIncident(c, id, models.CapabilityUpdateStatus); err != nil {
		writeError(c, h.logger.WithField("method", "evictParticipant").WithField("id", id), err)
		return
	}
	evicted := h.gateway.Evict(id, c.Param("userId"))
	c.JSON(http.StatusOK, gin.H{"evicted": evicted})
}
