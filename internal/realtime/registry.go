package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shenikar/sos_dispatch_system/internal/models"
)

// Participant - живое членство соединения в комнате инцидента
type Participant struct {
	IncidentID   uuid.UUID   `json:"incident_id"`
	ConnectionID string      `json:"connection_id"`
	UserID       string      `json:"user_id"`
	Role         models.Role `json:"role"`
	JoinedAt     time.Time   `json:"joined_at"`
}

// Registry - индекс комнат: инцидент -> соединения и обратный индекс соединение -> инциденты.
// Изменения точечные по ключу, карта целиком не пересоздается.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[string]Participant
	conns map[string]map[uuid.UUID]struct{}
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[uuid.UUID]map[string]Participant),
		conns: make(map[string]map[uuid.UUID]struct{}),
	}
}

// Join добавляет соединение в комнату. Повторный вход сохраняет исходный JoinedAt.
func (r *Registry) Join(p Participant) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[p.IncidentID]
	if !ok {
		members = make(map[string]Participant)
		r.rooms[p.IncidentID] = members
	}
	if existing, ok := members[p.ConnectionID]; ok {
		return existing, false
	}
	members[p.ConnectionID] = p

	rooms, ok := r.conns[p.ConnectionID]
	if !ok {
		rooms = make(map[uuid.UUID]struct{})
		r.conns[p.ConnectionID] = rooms
	}
	rooms[p.IncidentID] = struct{}{}
	return p, true
}

// Leave удаляет соединение из комнаты
func (r *Registry) Leave(incidentID uuid.UUID, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(incidentID, connectionID)
}

// LeaveAll удаляет соединение из всех комнат и возвращает их
func (r *Registry) LeaveAll(connectionID string) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := lo.Keys(r.conns[connectionID])
	for _, incidentID := range rooms {
		r.leaveLocked(incidentID, connectionID)
	}
	return rooms
}

func (r *Registry) leaveLocked(incidentID uuid.UUID, connectionID string) bool {
	members, ok := r.rooms[incidentID]
	if !ok {
		return false
	}
	if _, ok := members[connectionID]; !ok {
		return false
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(r.rooms, incidentID)
	}

	if rooms, ok := r.conns[connectionID]; ok {
		delete(rooms, incidentID)
		if len(rooms) == 0 {
			delete(r.conns, connectionID)
		}
	}
	return true
}

// IsMember сообщает, состоит ли соединение в комнате
func (r *Registry) IsMember(incidentID uuid.UUID, connectionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[incidentID][connectionID]
	return ok
}

// ListActive возвращает текущих участников комнаты в порядке входа
func (r *Registry) ListActive(incidentID uuid.UUID) []Participant {
	r.mu.RLock()
	participants := lo.Values(r.rooms[incidentID])
	r.mu.RUnlock()

	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].ConnectionID < participants[j].ConnectionID
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants
}

// CountActive возвращает число живых соединений в комнате
func (r *Registry) CountActive(incidentID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[incidentID])
}

// RoomsOf возвращает комнаты соединения
func (r *Registry) RoomsOf(connectionID string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.conns[connectionID])
}
