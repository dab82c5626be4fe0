package models

import (
	"time"

	"github.com/google/uuid"
)

// LocationUpdate представляет запись о местоположении в треке инцидента
type LocationUpdate struct {
	ID         int64     `json:"id"`
	IncidentID uuid.UUID `json:"incident_id"`
	Point      Point     `json:"point"`
	Accuracy   float64   `json:"accuracy"`
	RecordedAt time.Time `json:"recorded_at"`
}
