package v1

import (
	"time"

	"github.com/google/uuid"
)

// CreateSOSRequest DTO для открытия SOS
// @Description DTO для открытия SOS. citizen_id обязателен только для диспетчера и API-ключа.
type CreateSOSRequest struct {
	CityScope string   `json:"city_scope" validate:"required,max=64"`
	CitizenID string   `json:"citizen_id,omitempty" validate:"omitempty,max=128"`
	Latitude  *float64 `json:"lat" validate:"required,latitude"`
	Longitude *float64 `json:"lng" validate:"required,longitude"`
	Accuracy  float64  `json:"accuracy,omitempty" validate:"gte=0"`
	Notes     string   `json:"notes,omitempty" validate:"max=2000"`
}

// AssignRescuerRequest DTO для назначения спасателя
// @Description DTO для назначения спасателя
type AssignRescuerRequest struct {
	RescuerID string `json:"rescuer_id" validate:"required,max=128"`
}

// UpdateStatusRequest DTO для смены статуса
// @Description DTO для смены статуса. EN_ROUTE выставляется только назначением.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE EN_ROUTE ON_SCENE RESOLVED CANCELLED"`
}

// LocationRequest DTO для точки трека
// @Description DTO для точки трека
type LocationRequest struct {
	Latitude  *float64 `json:"lat" validate:"required,latitude"`
	Longitude *float64 `json:"lng" validate:"required,longitude"`
	Accuracy  float64  `json:"accuracy,omitempty" validate:"gte=0"`
}

// MessageRequest DTO для сообщения в комнату
// @Description DTO для сообщения в комнату
type MessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// DispatchRequest DTO для подбора штаба под инцидент
// @Description DTO для подбора штаба под инцидент
type DispatchRequest struct {
	IncidentType  string  `json:"incident_type,omitempty" validate:"max=64"`
	MaxDistanceKm float64 `json:"max_distance_km,omitempty" validate:"gte=0,lte=500"`
}

// IssueMissionRequest DTO для выдачи миссии
// @Description DTO для выдачи миссии спасателю
type IssueMissionRequest struct {
	IncidentID uuid.UUID `json:"incident_id" validate:"required"`
	CityScope  string    `json:"city_scope" validate:"required,max=64"`
	TTLMinutes int       `json:"ttl_minutes,omitempty" validate:"gte=0"`
}

// VerifyMissionRequest DTO для проверки токена миссии
// @Description DTO для проверки токена миссии
type VerifyMissionRequest struct {
	Token string `json:"token" validate:"required"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID                uuid.UUID  `json:"id"`
	CityScope         string     `json:"city_scope"`
	CitizenID         string     `json:"citizen_id"`
	Status            string     `json:"status"`
	Latitude          float64    `json:"lat"`
	Longitude         float64    `json:"lng"`
	Accuracy          float64    `json:"accuracy"`
	AssignedRescuerID string     `json:"assigned_rescuer_id,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
}

// IncidentDetailsResponse DTO инцидента с отображаемыми именами
// @Description DTO инцидента с отображаемыми именами
type IncidentDetailsResponse struct {
	IncidentResponse
	CitizenName string `json:"citizen_name,omitempty"`
	RescuerName string `json:"rescuer_name,omitempty"`
}

// LocationResponse DTO записанной точки трека
type LocationResponse struct {
	ID         int64     `json:"id"`
	IncidentID uuid.UUID `json:"incident_id"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lng"`
	Accuracy   float64   `json:"accuracy"`
	RecordedAt time.Time `json:"recorded_at"`
}

// MessageResponse DTO сообщения комнаты
type MessageResponse struct {
	ID         uuid.UUID `json:"id"`
	IncidentID uuid.UUID `json:"incident_id"`
	SenderID   string    `json:"sender_id"`
	SenderRole string    `json:"sender_role"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
}

// MissionResponse DTO миссии. Token есть только в ответе на выдачу.
type MissionResponse struct {
	ID           uuid.UUID  `json:"id"`
	Token        string     `json:"token,omitempty"`
	IncidentID   uuid.UUID  `json:"incident_id"`
	CityScope    string     `json:"city_scope"`
	Capabilities []string   `json:"capabilities"`
	IssuedBy     string     `json:"issued_by"`
	IssuedAt     time.Time  `json:"issued_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

// DispatchResponse DTO выбранного штаба
type DispatchResponse struct {
	HeadquartersID     string   `json:"headquarters_id"`
	Name               string   `json:"name"`
	ScopeLevel         string   `json:"scope_level"`
	CityCode           string   `json:"city_code"`
	Latitude           float64  `json:"lat"`
	Longitude          float64  `json:"lng"`
	DistanceKm         float64  `json:"distance_km"`
	DepartmentCodes    []string `json:"department_codes"`
	MatchedDepartments []string `json:"matched_departments,omitempty"`
}

// ParticipantResponse DTO участника комнаты
type ParticipantResponse struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	Role         string    `json:"role"`
	JoinedAt     time.Time `json:"joined_at"`
}

// StatsResponse DTO для ответа со статистикой
// @Description Количество инцидентов по статусам за окно STATS_TIME_WINDOW_MINUTES
type StatsResponse struct {
	CityScope     string         `json:"city_scope,omitempty"`
	WindowMinutes int            `json:"window_minutes"`
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
}
