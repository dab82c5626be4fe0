// Package memory содержит хранилища в памяти с той же семантикой, что и
// PostgreSQL-репозитории: условное обновление по версии, сентинел-ошибки.
// Используются в режиме STORAGE_DRIVER=memory и в сценарных тестах.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/models"
)

// IncidentStore хранит инциденты, сообщения и трек местоположений
type IncidentStore struct {
	mu        sync.RWMutex
	incidents map[uuid.UUID]models.Incident
	messages  map[uuid.UUID][]models.Message
	trail     map[uuid.UUID][]models.LocationUpdate
	seq       int64
}

func NewIncidentStore() *IncidentStore {
	return &IncidentStore{
		incidents: make(map[uuid.UUID]models.Incident),
		messages:  make(map[uuid.UUID][]models.Message),
		trail:     make(map[uuid.UUID][]models.LocationUpdate),
	}
}

func (s *IncidentStore) Create(_ context.Context, incident models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.incidents[incident.ID]; exists {
		return fmt.Errorf("incident %s already exists", incident.ID)
	}
	s.incidents[incident.ID] = incident
	return nil
}

func (s *IncidentStore) GetByID(_ context.Context, id uuid.UUID) (models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	incident, ok := s.incidents[id]
	if !ok {
		return models.Incident{}, apperror.ErrNotFound
	}
	return incident, nil
}

// Update сохраняет новое значение, только если версия не изменилась с момента чтения.
// Город, заявитель и местоположение не перезаписываются, как и в postgres.
func (s *IncidentStore) Update(_ context.Context, incident models.Incident, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.incidents[incident.ID]
	if !ok {
		return apperror.ErrNotFound
	}
	if current.Version != expectedVersion {
		return apperror.ErrStaleVersion
	}
	incident.CityScope = current.CityScope
	incident.CitizenID = current.CitizenID
	incident.CreatedAt = current.CreatedAt
	incident.Location = current.Location
	incident.LocationAccuracy = current.LocationAccuracy
	s.incidents[incident.ID] = incident
	return nil
}

// UpdateLocation добавляет точку в трек и переносит ее в текущее местоположение.
// Версию не меняет: местоположение не участвует в гонках переходов.
func (s *IncidentStore) UpdateLocation(_ context.Context, update *models.LocationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.incidents[update.IncidentID]
	if !ok {
		return apperror.ErrNotFound
	}
	s.seq++
	update.ID = s.seq
	s.trail[update.IncidentID] = append(s.trail[update.IncidentID], *update)

	current.Location = update.Point
	current.LocationAccuracy = update.Accuracy
	current.UpdatedAt = update.RecordedAt
	s.incidents[update.IncidentID] = current
	return nil
}

func (s *IncidentStore) ListIncidents(_ context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	s.mu.RLock()
	matched := make([]models.Incident, 0, len(s.incidents))
	for _, incident := range s.incidents {
		if filter.CityScope != "" && incident.CityScope != filter.CityScope {
			continue
		}
		if filter.Status != "" && incident.Status != filter.Status {
			continue
		}
		matched = append(matched, incident)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	offset := (filter.Page - 1) * filter.PageSize
	if filter.Page < 1 || filter.PageSize < 1 || offset >= len(matched) {
		return []models.Incident{}, nil
	}
	end := offset + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *IncidentStore) CountByStatus(_ context.Context, cityScope string, since time.Time) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int)
	for _, incident := range s.incidents {
		if cityScope != "" && incident.CityScope != cityScope {
			continue
		}
		if incident.CreatedAt.Before(since) {
			continue
		}
		counts[incident.Status]++
	}
	return counts, nil
}

func (s *IncidentStore) SaveMessage(_ context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[msg.IncidentID]; !ok {
		return apperror.ErrNotFound
	}
	s.messages[msg.IncidentID] = append(s.messages[msg.IncidentID], msg)
	return nil
}

// ListMessages возвращает последние limit сообщений в порядке отправки
func (s *IncidentStore) ListMessages(_ context.Context, incidentID uuid.UUID, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[incidentID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}
	out := make([]models.Message, len(all)-start)
	copy(out, all[start:])
	return out, nil
}

// Trail возвращает трек местоположений инцидента
func (s *IncidentStore) Trail(incidentID uuid.UUID) []models.LocationUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.LocationUpdate, len(s.trail[incidentID]))
	copy(out, s.trail[incidentID])
	return out
}
