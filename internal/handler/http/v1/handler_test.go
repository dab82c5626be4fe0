package v1

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/config"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/realtime"
	"github.com/shenikar/sos_dispatch_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testAPIKey    = "test-api-key"
	testJWTSecret = "test-secret"
)

var apiKeyHeaders = map[string]string{"X-API-Key": testAPIKey}

type testEnv struct {
	router   *gin.Engine
	sos      *mocks.MockSOSService
	missions *mocks.MockMissionService
	dispatch *mocks.MockDispatchService
	gateway  *realtime.Gateway
}

// newTestHandler создает Handler с мокированными сервисами и настоящим шлюзом
func newTestHandler(t *testing.T) testEnv {
	ctrl := gomock.NewController(t)
	env := testEnv{
		sos:      mocks.NewMockSOSService(ctrl),
		missions: mocks.NewMockMissionService(ctrl),
		dispatch: mocks.NewMockDispatchService(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		APIKeys:                []string{testAPIKey},
		JWTSecret:              testJWTSecret,
		StatsTimeWindowMinutes: 60,
		LocationRatePerSecond:  1,
		LocationRateBurst:      1,
		InstanceID:             "test",
	}
	env.gateway = realtime.NewGateway(realtime.NewRegistry(), logger, nil, 16)

	handler := NewHandler(env.sos, env.missions, env.dispatch, env.gateway, logger, cfg)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	env.router = gin.New()
	handler.RegisterRoutes(env.router.Group("/api/v1"))
	return env
}

func bearerFor(t *testing.T, subject string, role models.Role, cityScope string) map[string]string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, identityClaims{
		Role:      string(role),
		CityScope: cityScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + signed}
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func floatPtr(v float64) *float64 { return &v }

func testIncident(id uuid.UUID) models.Incident {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return models.Incident{
		ID:        id,
		CityScope: "manila",
		CitizenID: "citizen-1",
		Status:    models.StatusActive,
		Location:  models.Point{Lat: 14.5995, Lng: 120.9842},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateIncident_CitizenBearer(t *testing.T) {
	// Подготовка
	env := newTestHandler(t)
	id := uuid.New()
	reqBody := CreateSOSRequest{
		CityScope: "manila",
		CitizenID: "someone-else",
		Latitude:  floatPtr(14.5995),
		Longitude: floatPtr(120.9842),
	}

	// Ожидания: citizen_id берется из токена, а не из тела
	env.sos.EXPECT().
		CreateIncident(gomock.Any(), models.IncidentDraft{
			CityScope: "manila",
			CitizenID: "citizen-1",
			Location:  models.Point{Lat: 14.5995, Lng: 120.9842},
		}).
		Return(testIncident(id), nil)

	// Действие
	w := makeRequest(env.router, http.MethodPost, "/api/v1/sos", jsonBody(t, reqBody), bearerFor(t, "citizen-1", models.RoleCitizen, ""))

	// Проверки
	assert.Equal(t, http.StatusCreated, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, "ACTIVE", resp.Status)
	assert.Equal(t, 14.5995, resp.Latitude)
}

func TestCreateIncident_EquatorIsValid(t *testing.T) {
	env := newTestHandler(t)
	reqBody := CreateSOSRequest{CityScope: "quito", CitizenID: "c-9", Latitude: floatPtr(0), Longitude: floatPtr(-78.5)}

	env.sos.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Return(testIncident(uuid.New()), nil)

	w := makeRequest(env.router, http.MethodPost, "/api/v1/sos", jsonBody(t, reqBody), apiKeyHeaders)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateIncident_InvalidJSON(t *testing.T) {
	env := newTestHandler(t)

	env.sos.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(env.router, http.MethodPost, "/api/v1/sos", bytes.NewBufferString(`{"city_scope": "manila"`), apiKeyHeaders)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestCreateIncident_ValidationError(t *testing.T) {
	env := newTestHandler(t)
	reqBody := CreateSOSRequest{CityScope: "manila", CitizenID: "c-1", Longitude: floatPtr(120.9)} // нет lat

	w := makeRequest(env.router, http.MethodPost, "/api/v1/sos", jsonBody(t, reqBody), apiKeyHeaders)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Error:Field validation for 'Latitude' failed on the 'required' tag")
}

func TestCreateIncident_StaffNeedsCitizenID(t *testing.T) {
	env := newTestHandler(t)
	reqBody := CreateSOSRequest{CityScope: "manila", Latitude: floatPtr(14.5), Longitude: floatPtr(120.9)}

	w := makeRequest(env.router, http.MethodPost, "/api/v1/sos", jsonBody(t, reqBody), apiKeyHeaders)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "citizen_id is required")
}

func TestAuth_MissingCredentials(t *testing.T) {
	env := newTestHandler(t)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_InvalidAPIKey(t *testing.T) {
	env := newTestHandler(t)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos", nil, map[string]string{"X-API-Key": "wrong"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid API key")
}

func TestAuth_APIKeyAsBearer(t *testing.T) {
	env := newTestHandler(t)
	env.sos.EXPECT().ListIncidents(gomock.Any(), gomock.Any()).Return([]models.Incident{}, nil)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos", nil, map[string]string{"Authorization": "Bearer " + testAPIKey})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_BearerWrongSecret(t *testing.T) {
	env := newTestHandler(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, identityClaims{
		Role:             "dispatcher",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "d-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos", nil, map[string]string{"Authorization": "Bearer " + signed})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_CitizenCannotList(t *testing.T) {
	env := newTestHandler(t)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos", nil, bearerFor(t, "citizen-1", models.RoleCitizen, ""))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListIncidents_DispatcherScopeIsForced(t *testing.T) {
	env := newTestHandler(t)

	env.sos.EXPECT().
		ListIncidents(gomock.Any(), models.IncidentFilter{CityScope: "manila", Status: models.StatusActive, Page: 2, PageSize: 5}).
		Return([]models.Incident{testIncident(uuid.New())}, nil)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos?cityScope=cebu&status=ACTIVE&page=2&pageSize=5", nil,
		bearerFor(t, "d-1", models.RoleDispatcher, "manila"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
}

func TestGetStats_Success(t *testing.T) {
	env := newTestHandler(t)

	env.sos.EXPECT().
		GetStats(gomock.Any(), "manila").
		Return(map[models.Status]int{models.StatusActive: 3, models.StatusResolved: 2}, nil)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos/stats?cityScope=manila", nil, apiKeyHeaders)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 60, resp.WindowMinutes)
	assert.Equal(t, 0, resp.ByStatus["EN_ROUTE"])
	assert.Equal(t, 3, resp.ByStatus["ACTIVE"])
}

func TestGetIncident_WithMissionToken(t *testing.T) {
	// Подготовка
	env := newTestHandler(t)
	id := uuid.New()
	mission := models.Mission{ID: uuid.New(), IncidentID: id, CityScope: "manila", Capabilities: models.MissionCapabilities()}
	incident := testIncident(id)

	// Ожидания
	env.missions.EXPECT().VerifyMission(gomock.Any(), "msn_token").Return(mission, nil)
	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(incident, nil)
	env.sos.EXPECT().GetIncidentDetails(gomock.Any(), id).
		Return(models.IncidentDetails{Incident: incident, CitizenName: "Maria Santos"}, nil)

	// Действие
	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos/"+id.String(), nil, map[string]string{"X-Mission-Token": "msn_token"})

	// Проверки
	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentDetailsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Maria Santos", resp.CitizenName)
	assert.Equal(t, id, resp.ID)
}

func TestGetIncident_MissionForAnotherIncident(t *testing.T) {
	env := newTestHandler(t)
	mission := models.Mission{ID: uuid.New(), IncidentID: uuid.New(), Capabilities: models.MissionCapabilities()}

	env.missions.EXPECT().VerifyMission(gomock.Any(), "msn_token").Return(mission, nil)
	env.sos.EXPECT().GetIncident(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos/"+uuid.NewString(), nil, map[string]string{"X-Mission-Token": "msn_token"})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetIncident_ExpiredMission(t *testing.T) {
	env := newTestHandler(t)

	env.missions.EXPECT().VerifyMission(gomock.Any(), "msn_old").Return(models.Mission{}, &apperror.MissionExpiredError{Reason: "expired"})

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos/"+uuid.NewString(), nil, map[string]string{"X-Mission-Token": "msn_old"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetIncident_InvalidID(t *testing.T) {
	env := newTestHandler(t)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos/not-a-uuid", nil, apiKeyHeaders)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid incident ID")
}

func TestGetIncident_NotFound(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(models.Incident{}, apperror.NewNotFound("incident", id.String()))

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos/"+id.String(), nil, apiKeyHeaders)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetIncident_OtherCitizenForbidden(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos/"+id.String(), nil, bearerFor(t, "citizen-2", models.RoleCitizen, ""))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAssignRescuer_Success(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()
	assigned := testIncident(id)
	assigned.Status = models.StatusEnRoute
	assigned.AssignedRescuerID = "R1"

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)
	env.sos.EXPECT().
		AssignRescuer(gomock.Any(), id, "R1", models.Actor{ID: "d-1", Role: models.RoleDispatcher}).
		Return(assigned, nil)

	w := makeRequest(env.router, http.MethodPost, "/api/v1/sos/"+id.String()+"/assign",
		jsonBody(t, AssignRescuerRequest{RescuerID: "R1"}), bearerFor(t, "d-1", models.RoleDispatcher, ""))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "EN_ROUTE", resp.Status)
	assert.Equal(t, "R1", resp.AssignedRescuerID)
}

func TestAssignRescuer_Conflict(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)
	env.sos.EXPECT().AssignRescuer(gomock.Any(), id, "R2", gomock.Any()).
		Return(models.Incident{}, &apperror.ConflictError{Resource: "incident", ID: id.String(), Reason: "already assigned to R1"})

	w := makeRequest(env.router, http.MethodPost, "/api/v1/sos/"+id.String()+"/assign",
		jsonBody(t, AssignRescuerRequest{RescuerID: "R2"}), apiKeyHeaders)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already assigned")
}

func TestAssignRescuer_MissionCannotAssign(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()
	mission := models.Mission{ID: uuid.New(), IncidentID: id, Capabilities: models.MissionCapabilities()}

	env.missions.EXPECT().VerifyMission(gomock.Any(), "msn_token").Return(mission, nil)

	w := makeRequest(env.router, http.MethodPost, "/api/v1/sos/"+id.String()+"/assign",
		jsonBody(t, AssignRescuerRequest{RescuerID: "R1"}), map[string]string{"X-Mission-Token": "msn_token"})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)
	env.sos.EXPECT().UpdateStatus(gomock.Any(), id, models.StatusResolved, gomock.Any()).
		Return(models.Incident{}, &apperror.InvalidTransitionError{From: "ACTIVE", To: "RESOLVED"})

	w := makeRequest(env.router, http.MethodPatch, "/api/v1/sos/"+id.String()+"/status",
		jsonBody(t, UpdateStatusRequest{Status: "RESOLVED"}), apiKeyHeaders)

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ACTIVE", resp["from"])
	assert.Equal(t, "RESOLVED", resp["to"])
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	env := newTestHandler(t)

	w := makeRequest(env.router, http.MethodPatch, "/api/v1/sos/"+uuid.NewString()+"/status",
		jsonBody(t, UpdateStatusRequest{Status: "DONE"}), apiKeyHeaders)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatus_MissionHolder(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()
	mission := models.Mission{ID: uuid.New(), IncidentID: id, Capabilities: models.MissionCapabilities()}
	onScene := testIncident(id)
	onScene.Status = models.StatusOnScene

	env.missions.EXPECT().VerifyMission(gomock.Any(), "msn_token").Return(mission, nil)
	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)
	env.sos.EXPECT().
		UpdateStatus(gomock.Any(), id, models.StatusOnScene, models.Actor{ID: "mission:" + mission.ID.String(), Role: models.RoleRescuer}).
		Return(onScene, nil)

	w := makeRequest(env.router, http.MethodPatch, "/api/v1/sos/"+id.String()+"/status",
		jsonBody(t, UpdateStatusRequest{Status: "ON_SCENE"}), map[string]string{"X-Mission-Token": "msn_token"})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecordLocation_RateLimited(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()
	headers := bearerFor(t, "citizen-1", models.RoleCitizen, "")
	body := LocationRequest{Latitude: floatPtr(14.6), Longitude: floatPtr(120.98), Accuracy: 8}

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)
	env.sos.EXPECT().RecordLocation(gomock.Any(), id, models.Point{Lat: 14.6, Lng: 120.98}, 8.0).
		Return(models.LocationUpdate{ID: 1, IncidentID: id, Point: models.Point{Lat: 14.6, Lng: 120.98}, Accuracy: 8}, nil)

	first := makeRequest(env.router, http.MethodPost, "/api/v1/sos/"+id.String()+"/location", jsonBody(t, body), headers)
	second := makeRequest(env.router, http.MethodPost, "/api/v1/sos/"+id.String()+"/location", jsonBody(t, body), headers)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRecordLocation_DispatcherForbidden(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)

	w := makeRequest(env.router, http.MethodPost, "/api/v1/sos/"+id.String()+"/location",
		jsonBody(t, LocationRequest{Latitude: floatPtr(14.6), Longitude: floatPtr(120.98)}), apiKeyHeaders)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSendMessage_ClosedIncident(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)
	env.sos.EXPECT().SendMessage(gomock.Any(), id, models.Actor{ID: "citizen-1", Role: models.RoleCitizen}, "help").
		Return(models.Message{}, apperror.NewValidation("incident", "incident is closed"))

	w := makeRequest(env.router, http.MethodPost, "/api/v1/sos/"+id.String()+"/messages",
		jsonBody(t, MessageRequest{Content: "help"}), bearerFor(t, "citizen-1", models.RoleCitizen, ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMessages_Success(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)
	env.sos.EXPECT().ListMessages(gomock.Any(), id, 10).Return([]models.Message{
		{ID: uuid.New(), IncidentID: id, SenderID: "citizen-1", SenderRole: models.RoleCitizen, Content: "help"},
	}, nil)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos/"+id.String()+"/messages?limit=10", nil, apiKeyHeaders)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "citizen", resp[0].SenderRole)
}

func TestIssueMission_Success(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()
	issued := models.Mission{
		ID:           uuid.New(),
		Token:        "msn_plain",
		IncidentID:   id,
		CityScope:    "manila",
		Capabilities: models.MissionCapabilities(),
		IssuedBy:     "d-1",
	}

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)
	env.missions.EXPECT().
		IssueMission(gomock.Any(), models.MissionRequest{IncidentID: id, CityScope: "manila", IssuedBy: "d-1", TTLMinutes: 60}).
		Return(issued, nil)

	w := makeRequest(env.router, http.MethodPost, "/api/v1/missions",
		jsonBody(t, IssueMissionRequest{IncidentID: id, CityScope: "manila", TTLMinutes: 60}),
		bearerFor(t, "d-1", models.RoleDispatcher, ""))

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp MissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "msn_plain", resp.Token)
	assert.Equal(t, []string{"view", "update-status", "send-location", "send-message"}, resp.Capabilities)
}

func TestVerifyMission_PublicAndHidesToken(t *testing.T) {
	env := newTestHandler(t)
	mission := models.Mission{ID: uuid.New(), Token: "msn_plain", IncidentID: uuid.New(), Capabilities: models.MissionCapabilities()}

	env.missions.EXPECT().VerifyMission(gomock.Any(), "msn_plain").Return(mission, nil)

	w := makeRequest(env.router, http.MethodPost, "/api/v1/missions/verify", jsonBody(t, VerifyMissionRequest{Token: "msn_plain"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "msn_plain")
}

func TestRevokeMission_Idempotent(t *testing.T) {
	env := newTestHandler(t)
	missionID := uuid.New()

	env.missions.EXPECT().RevokeMission(gomock.Any(), missionID).Return(nil).Times(2)

	for i := 0; i < 2; i++ {
		w := makeRequest(env.router, http.MethodDelete, "/api/v1/missions/"+missionID.String(), nil, apiKeyHeaders)
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestRevokeIncidentMissions(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)
	env.missions.EXPECT().RevokeAllForIncident(gomock.Any(), id).Return(2, nil)

	w := makeRequest(env.router, http.MethodDelete, "/api/v1/sos/"+id.String()+"/missions", nil, apiKeyHeaders)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"revoked":2}`, w.Body.String())
}

func TestScopedDispatcher_ForeignIncidentStaffRoutes(t *testing.T) {
	// Подготовка
	env := newTestHandler(t)
	id := uuid.New()
	foreign := testIncident(id)
	foreign.CityScope = "cebu"
	manila := bearerFor(t, "dispatcher-1", models.RoleDispatcher, "manila")
	base := "/api/v1/sos/" + id.String()

	// Ожидания: до сервиса миссий и шлюза дело не доходит
	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(foreign, nil).Times(4)

	conn := env.gateway.Connect("citizen-1", models.RoleCitizen, false)
	_, err := env.gateway.JoinRoom(conn.ID, id)
	require.NoError(t, err)

	// Действие и проверки
	for _, req := range []struct{ method, url string }{
		{http.MethodGet, base + "/participants"},
		{http.MethodDelete, base + "/participants/citizen-1"},
		{http.MethodGet, base + "/missions"},
		{http.MethodDelete, base + "/missions"},
	} {
		w := makeRequest(env.router, req.method, req.url, nil, manila)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", req.method, req.url)
	}
	assert.Equal(t, 1, env.gateway.CountActive(id))
}

func TestScopedDispatcher_OwnIncidentMissions(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()
	manila := bearerFor(t, "dispatcher-1", models.RoleDispatcher, "manila")

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)
	env.missions.EXPECT().ListMissions(gomock.Any(), id).Return([]models.Mission{{ID: uuid.New(), IncidentID: id, CityScope: "manila"}}, nil)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/sos/"+id.String()+"/missions", nil, manila)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRevokeMission_ScopedDispatcher(t *testing.T) {
	env := newTestHandler(t)
	manila := bearerFor(t, "dispatcher-1", models.RoleDispatcher, "manila")
	own, foreign, unknown := uuid.New(), uuid.New(), uuid.New()

	env.missions.EXPECT().GetMission(gomock.Any(), own).Return(models.Mission{ID: own, CityScope: "manila"}, nil)
	env.missions.EXPECT().GetMission(gomock.Any(), foreign).Return(models.Mission{ID: foreign, CityScope: "cebu"}, nil)
	env.missions.EXPECT().GetMission(gomock.Any(), unknown).Return(models.Mission{}, apperror.NewNotFound("mission", unknown.String()))
	env.missions.EXPECT().RevokeMission(gomock.Any(), own).Return(nil)

	w := makeRequest(env.router, http.MethodDelete, "/api/v1/missions/"+own.String(), nil, manila)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = makeRequest(env.router, http.MethodDelete, "/api/v1/missions/"+foreign.String(), nil, manila)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = makeRequest(env.router, http.MethodDelete, "/api/v1/missions/"+unknown.String(), nil, manila)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDispatchIncident_NoHeadquarters(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)
	env.dispatch.EXPECT().Dispatch(gomock.Any(), id, "fire", 6.0).
		Return(models.DispatchDecision{}, apperror.NewNotFound("headquarters", ""))

	w := makeRequest(env.router, http.MethodPost, "/api/v1/sos/"+id.String()+"/dispatch",
		jsonBody(t, DispatchRequest{IncidentType: "fire", MaxDistanceKm: 6}), apiKeyHeaders)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDispatchIncident_DependencyFailure(t *testing.T) {
	env := newTestHandler(t)
	id := uuid.New()

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil)
	env.dispatch.EXPECT().Dispatch(gomock.Any(), id, "", 0.0).
		Return(models.DispatchDecision{}, apperror.NewDependency("headquarters", assert.AnError))

	w := makeRequest(env.router, http.MethodPost, "/api/v1/sos/"+id.String()+"/dispatch", nil, apiKeyHeaders)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestNearestHQ_Success(t *testing.T) {
	env := newTestHandler(t)
	decision := models.DispatchDecision{
		Headquarters: models.Headquarters{ID: "hq-1", Name: "Manila Central", ScopeLevel: models.ScopeCity, DepartmentCodes: []string{"fire"}},
		DistanceKm:   1.2,
	}

	env.dispatch.EXPECT().
		NearestHQ(gomock.Any(), models.Point{Lat: 14.5995, Lng: 120.9842}, 6.0, []string{"fire", "ems"}).
		Return(decision, true, nil)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/dispatch/nearest?lat=14.5995&lng=120.9842&radiusKm=6&departments=fire,%20ems,", nil, apiKeyHeaders)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hq-1", resp.HeadquartersID)
	assert.Equal(t, 1.2, resp.DistanceKm)
}

func TestNearestHQ_NotFoundAndBadInput(t *testing.T) {
	env := newTestHandler(t)

	env.dispatch.EXPECT().NearestHQ(gomock.Any(), gomock.Any(), 0.0, []string{}).Return(models.DispatchDecision{}, false, nil)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/dispatch/nearest?lat=14.5&lng=120.9", nil, apiKeyHeaders)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = makeRequest(env.router, http.MethodGet, "/api/v1/dispatch/nearest?lat=abc&lng=120.9", nil, apiKeyHeaders)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomFlow_JoinInboundEvict(t *testing.T) {
	// Подготовка
	env := newTestHandler(t)
	id := uuid.New()
	citizen := bearerFor(t, "citizen-1", models.RoleCitizen, "")
	conn := env.gateway.Connect("citizen-1", models.RoleCitizen, false)
	roomURL := "/api/v1/realtime/connections/" + conn.ID + "/rooms/" + id.String()

	env.sos.EXPECT().GetIncident(gomock.Any(), id).Return(testIncident(id), nil).AnyTimes()
	env.sos.EXPECT().SendMessage(gomock.Any(), id, models.Actor{ID: "citizen-1", Role: models.RoleCitizen}, "on my way").
		Return(models.Message{ID: uuid.New(), IncidentID: id, SenderID: "citizen-1", SenderRole: models.RoleCitizen, Content: "on my way"}, nil)

	// Действие: вход в комнату и сообщение через соединение
	w := makeRequest(env.router, http.MethodPost, roomURL, nil, citizen)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.gateway.CountActive(id))

	w = makeRequest(env.router, http.MethodPost, roomURL+"/messages", jsonBody(t, MessageRequest{Content: "on my way"}), citizen)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = makeRequest(env.router, http.MethodGet, "/api/v1/sos/"+id.String()+"/participants", nil, apiKeyHeaders)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), conn.ID)

	// Исключение: следующие входящие кадры отклоняются
	w = makeRequest(env.router, http.MethodDelete, "/api/v1/sos/"+id.String()+"/participants/citizen-1", nil, apiKeyHeaders)
	assert.JSONEq(t, `{"evicted":1}`, w.Body.String())

	w = makeRequest(env.router, http.MethodPost, roomURL+"/messages", jsonBody(t, MessageRequest{Content: "again"}), citizen)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRoomFlow_ForeignConnection(t *testing.T) {
	env := newTestHandler(t)
	conn := env.gateway.Connect("citizen-1", models.RoleCitizen, false)

	w := makeRequest(env.router, http.MethodPost, "/api/v1/realtime/connections/"+conn.ID+"/rooms/"+uuid.NewString(), nil,
		bearerFor(t, "citizen-2", models.RoleCitizen, ""))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestConnect_DashboardRequiresRole(t *testing.T) {
	env := newTestHandler(t)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/realtime/connect?dashboard=true", nil, bearerFor(t, "citizen-1", models.RoleCitizen, ""))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthCheck(t *testing.T) {
	env := newTestHandler(t)

	w := makeRequest(env.router, http.MethodGet, "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
