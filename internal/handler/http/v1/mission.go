package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/models"
)

// @Summary Issue a mission credential
// @Description Issue a time-limited token that lets a rescuer act on one incident. The plaintext token is returned once.
// @Tags Missions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param mission body IssueMissionRequest true "Mission request"
// @Success 201 {object} MissionResponse
// @Failure 400 {object} map[string]string "Invalid request, scope mismatch or closed incident"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /missions [post]
func (h *Handler) issueMission(c *gin.Context) {
	log := h.logger.WithField("method", "issueMission")

	var input IssueMissionRequest
	if !h.bind(c, log, &input) {
		return
	}
	if _, err := h.authorizeIncident(c, input.IncidentID, models.CapabilityUpdateStatus); err != nil {
		writeError(c, log, err)
		return
	}

	mission, err := h.missionService.IssueMission(c.Request.Context(), models.MissionRequest{
		IncidentID: input.IncidentID,
		CityScope:  input.CityScope,
		IssuedBy:   principalFrom(c).ID,
		TTLMinutes: input.TTLMinutes,
	})
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToMissionResponse(mission))
}

// @Summary Verify a mission token
// @Description Returns the credential binding and capabilities, or 401 when the token is unknown, revoked or expired.
// @Tags Missions
// @Accept json
// @Produce json
// @Param token body VerifyMissionRequest true "Token"
// @Success 200 {object} MissionResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Mission expired"
// @Router /missions/verify [post]
func (h *Handler) verifyMission(c *gin.Context) {
	log := h.logger.WithField("method", "verifyMission")

	var input VerifyMissionRequest
	if !h.bind(c, log, &input) {
		return
	}
	mission, err := h.missionService.VerifyMission(c.Request.Context(), input.Token)
	if err != nil {
		writeError(c, log, err)
		return
	}
	mission.Token = ""
	c.JSON(http.StatusOK, ModelToMissionResponse(mission))
}

// @Summary Revoke a mission
// @Description Idempotent: revoking an unknown or already revoked mission succeeds.
// @Tags Missions
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param missionId path string true "Mission ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Invalid mission ID"
// @Failure 403 {object} map[string]string "Mission belongs to another city scope"
// @Router /missions/{missionId} [delete]
func (h *Handler) revokeMission(c *gin.Context) {
	missionID, err := uuid.Parse(c.Param("missionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mission ID"})
		return
	}
	log := h.logger.WithField("method", "revokeMission").WithField("mission_id", missionID)

	// Диспетчер города может отзывать только миссии своего города
	if p := principalFrom(c); p.Role == models.RoleDispatcher && p.CityScope != "" {
		mission, err := h.missionService.GetMission(c.Request.Context(), missionID)
		switch {
		case apperror.IsNotFound(err):
			c.Status(http.StatusNoContent)
			return
		case err != nil:
			writeError(c, log, err)
			return
		case mission.CityScope != p.CityScope:
			writeError(c, log, apperror.NewForbidden("mission belongs to another city scope"))
			return
		}
	}

	if err := h.missionService.RevokeMission(c.Request.Context(), missionID); err != nil {
		writeError(c, log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Revoke all missions of an incident
// @Tags Missions
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} map[string]int "Number of newly revoked missions"
// @Router /sos/{id}/missions [delete]
func (h *Handler) revokeIncidentMissions(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "revokeIncidentMissions").WithField("id", id)
	if _, err := h.authorizeIncident(c, id, models.CapabilityUpdateStatus); err != nil {
		writeError(c, log, err)
		return
	}

	revoked, err := h.missionService.RevokeAllForIncident(c.Request.Context(), id)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": revoked})
}

// @Summary List missions of an incident
// @Description Metadata only, tokens are never returned here.
// @Tags Missions
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {array} MissionResponse
// @Router /sos/{id}/missions [get]
func (h *Handler) listMissions(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "listMissions").WithField("id", id)
	if _, err := h.authorizeIncident(c, id, models.CapabilityUpdateStatus); err != nil {
		writeError(c, log, err)
		return
	}

	missions, err := h.missionService.ListMissions(c.Request.Context(), id)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToMissionResponses(missions))
}
