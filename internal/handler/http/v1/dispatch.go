package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/models"
)

// @Summary Dispatch an incident
// @Description Pick the nearest active headquarters within the radius, filtered by departments that handle the incident type.
// @Tags Dispatch
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Param dispatch body DispatchRequest false "Dispatch parameters"
// @Success 200 {object} DispatchResponse
// @Failure 404 {object} map[string]string "Incident or headquarters not found"
// @Failure 502 {object} map[string]string "Headquarters lookup failed"
// @Router /sos/{id}/dispatch [post]
func (h *Handler) dispatchIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "dispatchIncident").WithField("id", id)

	var input DispatchRequest
	if c.Request.ContentLength != 0 && !h.bind(c, log, &input) {
		return
	}
	if _, err := h.authorizeIncident(c, id, models.CapabilityView); err != nil {
		writeError(c, log, err)
		return
	}

	decision, err := h.dispatchService.Dispatch(c.Request.Context(), id, input.IncidentType, input.MaxDistanceKm)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToDispatchResponse(decision))
}

// @Summary Find the nearest headquarters for a point
// @Tags Dispatch
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Param radiusKm query number false "Search radius in km" default(6)
// @Param departments query string false "Comma separated department codes"
// @Success 200 {object} DispatchResponse
// @Failure 400 {object} map[string]string "Invalid coordinates"
// @Failure 404 {object} map[string]string "No headquarters in range"
// @Router /dispatch/nearest [get]
func (h *Handler) nearestHQ(c *gin.Context) {
	log := h.logger.WithField("method", "nearestHQ")

	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required numbers"})
		return
	}
	radius := 0.0
	if raw := c.Query("radiusKm"); raw != "" {
		var err error
		if radius, err = strconv.ParseFloat(raw, 64); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radiusKm"})
			return
		}
	}
	departments := lo.Compact(lo.Map(strings.Split(c.Query("departments"), ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))

	decision, found, err := h.dispatchService.NearestHQ(c.Request.Context(), models.Point{Lat: lat, Lng: lng}, radius, departments)
	if err != nil {
		writeError(c, log, err)
		return
	}
	if !found {
		writeError(c, log, apperror.NewNotFound("headquarters", ""))
		return
	}
	c.JSON(http.StatusOK, ModelToDispatchResponse(decision))
}
