package models

import (
	"time"

	"github.com/google/uuid"
)

// Status - состояние SOS-инцидента
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusEnRoute   Status = "EN_ROUTE"
	StatusOnScene   Status = "ON_SCENE"
	StatusResolved  Status = "RESOLVED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal сообщает, что из состояния нет переходов
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// IsValid проверяет, что статус известен системе
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusEnRoute, StatusOnScene, StatusResolved, StatusCancelled:
		return true
	}
	return false
}

// Point - географическая точка в градусах WGS84
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Incident - неизменяемое значение SOS-инцидента.
// Все изменения возвращают новую копию с увеличенной Version.
type Incident struct {
	ID                uuid.UUID  `json:"id"`
	CityScope         string     `json:"city_scope"`
	CitizenID         string     `json:"citizen_id"`
	Status            Status     `json:"status"`
	Location          Point      `json:"location"`
	LocationAccuracy  float64    `json:"location_accuracy"`
	AssignedRescuerID string     `json:"assigned_rescuer_id,omitempty"`
	Notes             string     `json:"notes"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
}

// IsAssigned сообщает, назначен ли спасатель
func (i Incident) IsAssigned() bool {
	return i.AssignedRescuerID != ""
}

// IncidentFilter - параметры выборки списка инцидентов
type IncidentFilter struct {
	CityScope string
	Status    Status
	Page      int
	PageSize  int
}

// IncidentDetails - инцидент, дополненный отображаемыми именами участников
type IncidentDetails struct {
	Incident    Incident
	CitizenName string
	RescuerName string
}

// IncidentDraft - данные для открытия SOS
type IncidentDraft struct {
	CityScope string
	CitizenID string
	Location  Point
	Accuracy  float64
	Notes     string
}
