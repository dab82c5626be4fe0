package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"
	"github.com/shenikar/sos_dispatch_system/internal/geo"
	"github.com/shenikar/sos_dispatch_system/internal/models"
)

// HQStore - справочник штабов в памяти, поиск полным перебором по гаверсинусу
type HQStore struct {
	mu  sync.RWMutex
	hqs []models.Headquarters
}

func NewHQStore(hqs ...models.Headquarters) *HQStore {
	return &HQStore{hqs: hqs}
}

// Add добавляет штаб в справочник
func (s *HQStore) Add(hq models.Headquarters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hqs = append(s.hqs, hq)
}

// FindActiveWithin возвращает активные штабы в радиусе, ближайшие первыми
func (s *HQStore) FindActiveWithin(_ context.Context, point models.Point, maxDistanceKm float64, departments []string) ([]models.Headquarters, error) {
	s.mu.RLock()
	candidates := lo.Filter(s.hqs, func(hq models.Headquarters, _ int) bool {
		if !hq.Active {
			return false
		}
		if len(departments) > 0 && !lo.Some(hq.DepartmentCodes, departments) {
			return false
		}
		return geo.DistanceKm(point, hq.Location) <= maxDistanceKm
	})
	s.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return geo.DistanceKm(point, candidates[i].Location) < geo.DistanceKm(point, candidates[j].Location)
	})
	return candidates, nil
}
