package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Capability - право, которое дает миссия
type Capability string

const (
	CapabilityView         Capability = "view"
	CapabilityUpdateStatus Capability = "update-status"
	CapabilitySendLocation Capability = "send-location"
	CapabilitySendMessage  Capability = "send-message"
)

// MissionCapabilities - фиксированный набор прав любой миссии
func MissionCapabilities() []Capability {
	return []Capability{
		CapabilityView,
		CapabilityUpdateStatus,
		CapabilitySendLocation,
		CapabilitySendMessage,
	}
}

// Mission - ограниченный по времени доступ спасателя к одному инциденту.
// Token заполнен только в ответе на выдачу, в хранилище лежит TokenHash.
type Mission struct {
	ID           uuid.UUID    `json:"id"`
	Token        string       `json:"token,omitempty"`
	TokenHash    string       `json:"-"`
	IncidentID   uuid.UUID    `json:"incident_id"`
	CityScope    string       `json:"city_scope"`
	Capabilities []Capability `json:"capabilities"`
	IssuedBy     string       `json:"issued_by"`
	IssuedAt     time.Time    `json:"issued_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
	RevokedAt    *time.Time   `json:"revoked_at,omitempty"`
	Expired      bool         `json:"-"`
}

// IsValidAt сообщает, действует ли миссия в момент now
func (m Mission) IsValidAt(now time.Time) bool {
	return m.RevokedAt == nil && now.Before(m.ExpiresAt)
}

// Allows проверяет наличие права
func (m Mission) Allows(c Capability) bool {
	return lo.Contains(m.Capabilities, c)
}

// Grants проверяет право на конкретный инцидент
func (m Mission) Grants(incidentID uuid.UUID, c Capability) bool {
	return m.IncidentID == incidentID && m.Allows(c)
}

// MissionRequest - параметры выдачи миссии. TTLMinutes == 0 означает значение по умолчанию.
type MissionRequest struct {
	IncidentID uuid.UUID
	CityScope  string
	IssuedBy   string
	TTLMinutes int
}
