package events

import (
	"time"

	"github.com/google/uuid"
)

// Type - тип доменного события
type Type string

// Типы, которые уходят наблюдателям по проводу
const (
	IncidentCreated Type = "sos:created"
	LocationUpdated Type = "location:updated"
	MessageSent     Type = "message:sent"
	StatusChanged   Type = "sos:status-changed"
	RescuerAssigned Type = "rescuer:assigned"
	Cancelled       Type = "sos:cancelled"
	Resolved        Type = "sos:resolved"
)

// Внутренние типы, в комнаты не транслируются
const (
	MissionIssued    Type = "mission:issued"
	MissionRevoked   Type = "mission:revoked"
	DispatchResolved Type = "dispatch:resolved"
)

// WireTypes - типы событий, которые видят наблюдатели
func WireTypes() []Type {
	return []Type{IncidentCreated, LocationUpdated, MessageSent, StatusChanged, RescuerAssigned, Cancelled, Resolved}
}

// IsWire сообщает, транслируется ли тип наблюдателям
func (t Type) IsWire() bool {
	switch t {
	case IncidentCreated, LocationUpdated, MessageSent, StatusChanged, RescuerAssigned, Cancelled, Resolved:
		return true
	}
	return false
}

// IsGlobal сообщает, попадает ли тип в общий канал дашбордов
func (t Type) IsGlobal() bool {
	return t == IncidentCreated || t == StatusChanged
}

// Event - неизменяемый факт об изменении состояния. Не сохраняется.
type Event struct {
	ID         string
	Type       Type
	IncidentID uuid.UUID
	CityScope  string
	Timestamp  time.Time
	Payload    any
}

// Envelope - форма события на проводе
type Envelope struct {
	Type      Type      `json:"type"`
	SOSID     uuid.UUID `json:"sosId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	// CityScope нужен для фильтрации ленты дашбордов и на провод не уходит
	CityScope string `json:"-"`
}

// Envelope строит проводное представление события
func (e Event) Envelope() Envelope {
	return Envelope{
		Type:      e.Type,
		SOSID:     e.IncidentID,
		Timestamp: e.Timestamp,
		Data:      e.Payload,
		CityScope: e.CityScope,
	}
}

// Полезные нагрузки событий

type StatusPayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	ActorID   string `json:"actorId"`
	ActorRole string `json:"actorRole"`
}

type AssignmentPayload struct {
	RescuerID string `json:"rescuerId"`
	Status    string `json:"status"`
	ActorID   string `json:"actorId"`
}

type LocationPayload struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

type MessagePayload struct {
	MessageID  uuid.UUID `json:"messageId"`
	SenderID   string    `json:"senderId"`
	SenderRole string    `json:"senderRole"`
	Content    string    `json:"content"`
}

type MissionPayload struct {
	MissionID  uuid.UUID   `json:"missionId"`
	MissionIDs []uuid.UUID `json:"missionIds,omitempty"`
	IssuedBy   string      `json:"issuedBy,omitempty"`
	ExpiresAt  time.Time   `json:"expiresAt,omitempty"`
	Count      int         `json:"count,omitempty"`
}

type DispatchPayload struct {
	HeadquartersID string  `json:"headquartersId"`
	DistanceKm     float64 `json:"distanceKm"`
}
