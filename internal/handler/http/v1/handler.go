package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/config"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/realtime"
	"github.com/shenikar/sos_dispatch_system/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	sosService      service.SOSService
	missionService  service.MissionService
	dispatchService service.DispatchService
	gateway         *realtime.Gateway
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
	locationLimiter *principalLimiter
}

func NewHandler(
	sosService service.SOSService,
	missionService service.MissionService,
	dispatchService service.DispatchService,
	gateway *realtime.Gateway,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		sosService:      sosService,
		missionService:  missionService,
		dispatchService: dispatchService,
		gateway:         gateway,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
		locationLimiter: newPrincipalLimiter(cfg.LocationRatePerSecond, cfg.LocationRateBurst),
	}
}

// bind разбирает JSON и проверяет теги validator. При ошибке ответ уже записан.
func (h *Handler) bind(c *gin.Context, log *logrus.Entry, input any) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func parseIncidentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return uuid.Nil, false
	}
	return id, true
}

// @Summary Open a new SOS
// @Description Citizen opens an SOS for themselves; dispatchers and API keys open it on behalf of citizen_id.
// @Tags SOS
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param incident body CreateSOSRequest true "SOS intake request"
// @Success 201 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /sos [post]
func (h *Handler) createIncident(c *gin.Context) {
	var input CreateSOSRequest
	log := h.logger.WithField("method", "createIncident")
	if !h.bind(c, log, &input) {
		return
	}

	p := principalFrom(c)
	var citizenID string
	switch {
	case p.Method == AuthBearer && p.Role == models.RoleCitizen:
		citizenID = p.ID
	case p.IsStaff():
		citizenID = input.CitizenID
		if citizenID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "citizen_id is required"})
			return
		}
	default:
		writeError(c, log, apperror.NewForbidden("only citizens and dispatchers open incidents"))
		return
	}

	incident, err := h.sosService.CreateIncident(c.Request.Context(), DTOToIncidentDraft(input, citizenID))
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToIncidentResponse(incident))
}

// @Summary Get a list of incidents
// @Description Get a paginated list of incidents, newest first. Dispatchers bound to a city scope only see that scope.
// @Tags SOS
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param cityScope query string false "City scope"
// @Param status query string false "Status filter"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Number of items per page" default(20)
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid status"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /sos [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	filter := models.IncidentFilter{
		CityScope: h.scopeFor(c, c.Query("cityScope")),
		Status:    models.Status(c.Query("status")),
		Page:      page,
		PageSize:  pageSize,
	}
	incidents, err := h.sosService.ListIncidents(c.Request.Context(), filter)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident statistics
// @Description Count incidents opened within STATS_TIME_WINDOW_MINUTES, grouped by status.
// @Tags SOS
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param cityScope query string false "City scope"
// @Success 200 {object} StatsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /sos/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	log := h.logger.WithField("method", "getStats")
	cityScope := h.scopeFor(c, c.Query("cityScope"))

	counts, err := h.sosService.GetStats(c.Request.Context(), cityScope)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, StatusCountsToResponse(cityScope, h.cfg.StatsTimeWindowMinutes, counts))
}

// scopeFor привязывает выборку к городу диспетчера, если он задан в токене
func (h *Handler) scopeFor(c *gin.Context, requested string) string {
	p := principalFrom(c)
	if p.Role == models.RoleDispatcher && p.CityScope != "" {
		return p.CityScope
	}
	return requested
}

// @Summary Get incident by ID
// @Description Get a single incident with citizen and rescuer display names (best effort).
// @Tags SOS
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Security MissionToken
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentDetailsResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /sos/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	if _, err := h.authorizeIncident(c, id, models.CapabilityView); err != nil {
		writeError(c, log, err)
		return
	}
	details, err := h.sosService.GetIncidentDetails(c.Request.Context(), id)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentDetailsResponse(details))
}

// @Summary Assign a rescuer
// @Description Assign a rescuer; an ACTIVE incident moves to EN_ROUTE in the same update.
// @Tags SOS
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Param assignment body AssignRescuerRequest true "Rescuer"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Already assigned or closed"
// @Router /sos/{id}/assign [post]
func (h *Handler) assignRescuer(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "assignRescuer").WithField("id", id)

	var input AssignRescuerRequest
	if !h.bind(c, log, &input) {
		return
	}
	if _, err := h.authorizeIncident(c, id, models.CapabilityUpdateStatus); err != nil {
		writeError(c, log, err)
		return
	}

	incident, err := h.sosService.AssignRescuer(c.Request.Context(), id, input.RescuerID, principalFrom(c).Actor())
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Change incident status
// @Description Move the incident along ACTIVE→EN_ROUTE→ON_SCENE→RESOLVED or cancel it. EN_ROUTE is set by assignment only.
// @Tags SOS
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Security MissionToken
// @Param id path string true "Incident ID"
// @Param status body UpdateStatusRequest true "Requested status"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Invalid transition"
// @Router /sos/{id}/status [patch]
func (h *Handler) updateStatus(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "updateStatus").WithField("id", id)

	var input UpdateStatusRequest
	if !h.bind(c, log, &input) {
		return
	}
	if _, err := h.authorizeIncident(c, id, models.CapabilityUpdateStatus); err != nil {
		writeError(c, log, err)
		return
	}

	incident, err := h.sosService.UpdateStatus(c.Request.Context(), id, models.Status(input.Status), principalFrom(c).Actor())
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Record a location ping
// @Description Append a point to the incident trail and broadcast it to the room. Rate limited per principal.
// @Tags SOS
// @Accept json
// @Produce json
// @Security BearerAuth
// @Security MissionToken
// @Param id path string true "Incident ID"
// @Param location body LocationRequest true "Location"
// @Success 201 {object} LocationResponse
// @Failure 400 {object} map[string]string "Invalid request or closed incident"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 429 {object} map[string]string "Rate limit exceeded"
// @Router /sos/{id}/location [post]
func (h *Handler) recordLocation(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "recordLocation").WithField("id", id)

	var input LocationRequest
	if !h.bind(c, log, &input) {
		return
	}
	if _, err := h.authorizeIncident(c, id, models.CapabilitySendLocation); err != nil {
		writeError(c, log, err)
		return
	}
	h.saveLocation(c, log, id, input)
}

func (h *Handler) saveLocation(c *gin.Context, log *logrus.Entry, id uuid.UUID, input LocationRequest) {
	point := models.Point{Lat: *input.Latitude, Lng: *input.Longitude}
	update, err := h.sosService.RecordLocation(c.Request.Context(), id, point, input.Accuracy)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToLocationResponse(update))
}

// @Summary Send a message to the incident room
// @Tags Messages
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Security MissionToken
// @Param id path string true "Incident ID"
// @Param message body MessageRequest true "Message"
// @Success 201 {object} MessageResponse
// @Failure 400 {object} map[string]string "Invalid request or closed incident"
// @Failure 403 {object} map[string]string "Forbidden"
// @Router /sos/{id}/messages [post]
func (h *Handler) sendMessage(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "sendMessage").WithField("id", id)

	var input MessageRequest
	if !h.bind(c, log, &input) {
		return
	}
	if _, err := h.authorizeIncident(c, id, models.CapabilitySendMessage); err != nil {
		writeError(c, log, err)
		return
	}
	h.saveMessage(c, log, id, input)
}

func (h *Handler) saveMessage(c *gin.Context, log *logrus.Entry, id uuid.UUID, input MessageRequest) {
	msg, err := h.sosService.SendMessage(c.Request.Context(), id, principalFrom(c).Actor(), input.Content)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToMessageResponse(msg))
}

// @Summary List recent room messages
// @Tags Messages
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Security MissionToken
// @Param id path string true "Incident ID"
// @Param limit query int false "Max messages" default(100)
// @Success 200 {array} MessageResponse
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /sos/{id}/messages [get]
func (h *Handler) listMessages(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "listMessages").WithField("id", id)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	if _, err := h.authorizeIncident(c, id, models.CapabilityView); err != nil {
		writeError(c, log, err)
		return
	}
	messages, err := h.sosService.ListMessages(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToMessageResponses(messages))
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "instance": h.cfg.InstanceID})
}
