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

// MissionStore хранит миссии по id с индексом по хешу токена
type MissionStore struct {
	mu       sync.RWMutex
	missions map[uuid.UUID]models.Mission
	byHash   map[string]uuid.UUID
}

func NewMissionStore() *MissionStore {
	return &MissionStore{
		missions: make(map[uuid.UUID]models.Mission),
		byHash:   make(map[string]uuid.UUID),
	}
}

func (s *MissionStore) Create(_ context.Context, mission models.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byHash[mission.TokenHash]; exists {
		return fmt.Errorf("mission token hash collision")
	}
	mission.Token = ""
	s.missions[mission.ID] = mission
	s.byHash[mission.TokenHash] = mission.ID
	return nil
}

func (s *MissionStore) GetByTokenHash(_ context.Context, tokenHash string) (models.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[tokenHash]
	if !ok {
		return models.Mission{}, apperror.ErrNotFound
	}
	return s.missions[id], nil
}

// Revoke проставляет RevokedAt один раз. Повторный вызов возвращает false.
func (s *MissionStore) Revoke(_ context.Context, id uuid.UUID, at time.Time) (models.Mission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mission, ok := s.missions[id]
	if !ok {
		return models.Mission{}, false, apperror.ErrNotFound
	}
	if mission.RevokedAt != nil {
		return mission, false, nil
	}
	revokedAt := at
	mission.RevokedAt = &revokedAt
	s.missions[id] = mission
	return mission, true, nil
}

func (s *MissionStore) GetByID(_ context.Context, id uuid.UUID) (models.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mission, ok := s.missions[id]
	if !ok {
		return models.Mission{}, apperror.ErrNotFound
	}
	return mission, nil
}

// RevokeAllForIncident возвращает id миссий, отозванных этим вызовом
func (s *MissionStore) RevokeAllForIncident(_ context.Context, incidentID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := make([]uuid.UUID, 0)
	for id, mission := range s.missions {
		if mission.IncidentID != incidentID || mission.RevokedAt != nil {
			continue
		}
		revokedAt := at
		mission.RevokedAt = &revokedAt
		s.missions[id] = mission
		revoked = append(revoked, id)
	}
	return revoked, nil
}

func (s *MissionStore) ListByIncident(_ context.Context, incidentID uuid.UUID) ([]models.Mission, error) {
	s.mu.RLock()
	out := make([]models.Mission, 0)
	for _, mission := range s.missions {
		if mission.IncidentID == incidentID {
			out = append(out, mission)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

// MarkExpired помечает истекшие, еще не помеченные миссии
func (s *MissionStore) MarkExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, mission := range s.missions {
		if mission.Expired || now.Before(mission.ExpiresAt) {
			continue
		}
		mission.Expired = true
		s.missions[id] = mission
		count++
	}
	return count, nil
}
