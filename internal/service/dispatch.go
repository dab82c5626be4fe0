package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/config"
	"github.com/shenikar/sos_dispatch_system/internal/events"
	"github.com/shenikar/sos_dispatch_system/internal/geo"
	"github.com/shenikar/sos_dispatch_system/internal/metrics"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

// HQReference - справочник штабов. Возвращает только активные штабы в радиусе.
type HQReference interface {
	FindActiveWithin(ctx context.Context, point models.Point, maxDistanceKm float64, departments []string) ([]models.Headquarters, error)
}

// DepartmentDirectory - фильтр ведомств из городского реестра
type DepartmentDirectory interface {
	DepartmentsFor(ctx context.Context, incidentType, cityCode string) ([]string, error)
}

// DispatchService определяет контракт выбора ближайшего штаба
type DispatchService interface {
	NearestHQ(ctx context.Context, point models.Point, maxDistanceKm float64, departments []string) (models.DispatchDecision, bool, error)
	DepartmentsFor(ctx context.Context, incidentType, cityCode string) ([]string, error)
	Dispatch(ctx context.Context, incidentID uuid.UUID, incidentType string, maxDistanceKm float64) (models.DispatchDecision, error)
}

type dispatchService struct {
	hqs         HQReference
	departments DepartmentDirectory
	incidents   IncidentReader
	publisher   events.Publisher
	metrics     *metrics.Metrics
	logger      *logrus.Logger
	cfg         *config.Config
}

func NewDispatchService(hqs HQReference, departments DepartmentDirectory, incidents IncidentReader, publisher events.Publisher, logger *logrus.Logger, cfg *config.Config, m *metrics.Metrics) DispatchService {
	return &dispatchService{
		hqs:         hqs,
		departments: departments,
		incidents:   incidents,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
		cfg:         cfg,
	}
}

// NearestHQ выбирает ближайший активный штаб не дальше maxDistanceKm.
// Кандидаты из справочника перепроверяются по гаверсинусу, радиус не расширяется.
func (s *dispatchService) NearestHQ(ctx context.Context, point models.Point, maxDistanceKm float64, departments []string) (models.DispatchDecision, bool, error) {
	if !geo.Valid(point) {
		return models.DispatchDecision{}, false, apperror.NewValidation("location", "coordinates out of range")
	}
	if maxDistanceKm <= 0 {
		maxDistanceKm = s.cfg.DispatchDefaultRadiusKm
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":     "dispatch",
		"method":      "NearestHQ",
		"lat":         point.Lat,
		"lng":         point.Lng,
		"radius_km":   maxDistanceKm,
		"departments": departments,
	})

	candidates, err := s.hqs.FindActiveWithin(ctx, point, maxDistanceKm, departments)
	if err != nil {
		s.metrics.IncDispatchLookups("error")
		log.WithError(err).Error("Headquarters lookup failed")
		return models.DispatchDecision{}, false, apperror.NewDependency("headquarters", err)
	}

	type ranked struct {
		hq       models.Headquarters
		distance float64
	}
	eligible := make([]ranked, 0, len(candidates))
	for _, hq := range candidates {
		if !hq.Active {
			continue
		}
		if len(departments) > 0 && !lo.Some(hq.DepartmentCodes, departments) {
			continue
		}
		d := geo.DistanceKm(point, hq.Location)
		if d > maxDistanceKm {
			continue
		}
		if hq.CoverageRadiusKm != nil && d > *hq.CoverageRadiusKm {
			continue
		}
		eligible = append(eligible, ranked{hq: hq, distance: d})
	}

	if len(eligible) == 0 {
		s.metrics.IncDispatchLookups("not_found")
		log.Info("No headquarters in range")
		return models.DispatchDecision{}, false, nil
	}

	best := lo.MinBy(eligible, func(a, b ranked) bool {
		if a.distance == b.distance {
			return a.hq.ID < b.hq.ID
		}
		return a.distance < b.distance
	})

	s.metrics.IncDispatchLookups("found")
	log.WithFields(logrus.Fields{
		"hq_id":       best.hq.ID,
		"distance_km": best.distance,
	}).Info("Nearest headquarters resolved")

	return models.DispatchDecision{
		Headquarters: best.hq,
		DistanceKm:   best.distance,
		Departments:  departments,
	}, true, nil
}

// DepartmentsFor возвращает коды ведомств для типа происшествия в городе
func (s *dispatchService) DepartmentsFor(ctx context.Context, incidentType, cityCode string) ([]string, error) {
	if s.departments == nil || strings.TrimSpace(incidentType) == "" {
		return nil, nil
	}
	codes, err := s.departments.DepartmentsFor(ctx, incidentType, cityCode)
	if err != nil {
		return nil, apperror.NewDependency("city-registry", err)
	}
	return codes, nil
}

// Dispatch выбирает штаб для инцидента. Сбой городского реестра снимает
// фильтр ведомств, отсутствие штаба в радиусе - NotFoundError.
func (s *dispatchService) Dispatch(ctx context.Context, incidentID uuid.UUID, incidentType string, maxDistanceKm float64) (models.DispatchDecision, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":       "dispatch",
		"method":        "Dispatch",
		"incident_id":   incidentID,
		"incident_type": incidentType,
	})

	incident, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return models.DispatchDecision{}, apperror.NewNotFound("incident", incidentID.String())
		}
		return models.DispatchDecision{}, fmt.Errorf("service: could not dispatch incident: %w", err)
	}

	departments, err := s.DepartmentsFor(ctx, incidentType, incident.CityScope)
	if err != nil {
		log.WithError(err).Warn("Department lookup failed, dispatching without department filter")
		departments = nil
	}

	decision, found, err := s.NearestHQ(ctx, incident.Location, maxDistanceKm, departments)
	if err != nil {
		return models.DispatchDecision{}, err
	}
	if !found {
		return models.DispatchDecision{}, apperror.NewNotFound("headquarters", "")
	}

	s.publisher.Publish(ctx, events.Event{
		Type:       events.DispatchResolved,
		IncidentID: incident.ID,
		CityScope:  incident.CityScope,
		Payload: events.DispatchPayload{
			HeadquartersID: decision.Headquarters.ID,
			DistanceKm:     decision.DistanceKm,
		},
	})
	return decision, nil
}
