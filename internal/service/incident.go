package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/config"
	"github.com/shenikar/sos_dispatch_system/internal/events"
	"github.com/shenikar/sos_dispatch_system/internal/geo"
	"github.com/shenikar/sos_dispatch_system/internal/metrics"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/statemachine"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const maxMessageLength = 2000

// Clock - источник текущего времени, подменяется в тестах
type Clock func() time.Time

// IncidentRepository определяет контракт для работы с бд инцидентов.
// Update - условное обновление: ErrStaleVersion, если версия в хранилище не совпала с expectedVersion.
type IncidentRepository interface {
	Create(ctx context.Context, incident models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (models.Incident, error)
	Update(ctx context.Context, incident models.Incident, expectedVersion int64) error
	UpdateLocation(ctx context.Context, update *models.LocationUpdate) error
	ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error)
	CountByStatus(ctx context.Context, cityScope string, since time.Time) (map[models.Status]int, error)
	SaveMessage(ctx context.Context, msg models.Message) error
	ListMessages(ctx context.Context, incidentID uuid.UUID, limit int) ([]models.Message, error)
}

// IncidentCache - кеш чтения инцидентов. Промах возвращает (nil, nil).
type IncidentCache interface {
	GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	SetIncidentCache(ctx context.Context, incident models.Incident) error
	InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error
}

// IdentityDirectory - внешний реестр пользователей для отображаемых имен
type IdentityDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// MissionRevoker отзывает миссии при закрытии инцидента
type MissionRevoker interface {
	RevokeAllForIncident(ctx context.Context, incidentID uuid.UUID) (int, error)
}

// SOSService определяет контракт бизнес-логики жизненного цикла SOS
type SOSService interface {
	CreateIncident(ctx context.Context, in models.IncidentDraft) (models.Incident, error)
	GetIncident(ctx context.Context, id uuid.UUID) (models.Incident, error)
	GetIncidentDetails(ctx context.Context, id uuid.UUID) (models.IncidentDetails, error)
	ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error)
	GetStats(ctx context.Context, cityScope string) (map[models.Status]int, error)
	AssignRescuer(ctx context.Context, id uuid.UUID, rescuerID string, actor models.Actor) (models.Incident, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status, actor models.Actor) (models.Incident, error)
	RecordLocation(ctx context.Context, id uuid.UUID, point models.Point, accuracy float64) (models.LocationUpdate, error)
	SendMessage(ctx context.Context, id uuid.UUID, sender models.Actor, content string) (models.Message, error)
	ListMessages(ctx context.Context, id uuid.UUID, limit int) ([]models.Message, error)
}

type sosService struct {
	repo      IncidentRepository
	cache     IncidentCache
	identity  IdentityDirectory
	missions  MissionRevoker
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	cfg       *config.Config
	clock     Clock
}

// SOSOption настраивает необязательные зависимости сервиса
type SOSOption func(*sosService)

// WithIncidentCache включает кеш чтения
func WithIncidentCache(cache IncidentCache) SOSOption {
	return func(s *sosService) { s.cache = cache }
}

// WithIdentityDirectory включает обогащение именами
func WithIdentityDirectory(identity IdentityDirectory) SOSOption {
	return func(s *sosService) { s.identity = identity }
}

// WithMissionRevoker включает отзыв миссий при закрытии инцидента
func WithMissionRevoker(revoker MissionRevoker) SOSOption {
	return func(s *sosService) { s.missions = revoker }
}

// WithSOSMetrics подключает метрики
func WithSOSMetrics(m *metrics.Metrics) SOSOption {
	return func(s *sosService) { s.metrics = m }
}

// WithSOSClock подменяет часы
func WithSOSClock(clock Clock) SOSOption {
	return func(s *sosService) { s.clock = clock }
}

func NewSOSService(repo IncidentRepository, publisher events.Publisher, logger *logrus.Logger, cfg *config.Config, opts ...SOSOption) SOSService {
	s := &sosService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateIncident открывает новый SOS в статусе ACTIVE
func (s *sosService) CreateIncident(ctx context.Context, in models.IncidentDraft) (models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "sos",
		"method":     "CreateIncident",
		"city_scope": in.CityScope,
		"citizen_id": in.CitizenID,
	})
	log.Info("Attempting to create a new incident")

	if strings.TrimSpace(in.CityScope) == "" {
		return models.Incident{}, apperror.NewValidation("city_scope", "must not be empty")
	}
	if strings.TrimSpace(in.CitizenID) == "" {
		return models.Incident{}, apperror.NewValidation("citizen_id", "must not be empty")
	}
	if !geo.Valid(in.Location) {
		return models.Incident{}, apperror.NewValidation("location", "coordinates out of range")
	}
	if in.Accuracy < 0 {
		return models.Incident{}, apperror.NewValidation("accuracy", "must not be negative")
	}

	now := s.clock().UTC()
	incident := models.Incident{
		ID:               uuid.New(),
		CityScope:        in.CityScope,
		CitizenID:        in.CitizenID,
		Status:           models.StatusActive,
		Location:         in.Location,
		LocationAccuracy: in.Accuracy,
		Notes:            in.Notes,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to create incident in repository")
		return models.Incident{}, fmt.Errorf("service: could not create incident: %w", err)
	}

	s.metrics.IncIncidentsCreated()
	s.publisher.Publish(ctx, events.Event{
		Type:       events.IncidentCreated,
		IncidentID: incident.ID,
		CityScope:  incident.CityScope,
		Timestamp:  now,
		Payload:    incident,
	})

	log.WithField("incident_id", incident.ID).Info("Incident created successfully")
	return incident, nil
}

// GetIncident получает инцидент по ID, сначала из кеша
func (s *sosService) GetIncident(ctx context.Context, id uuid.UUID) (models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "sos",
		"method":      "GetIncident",
		"incident_id": id,
	})

	if s.cache != nil {
		cached, err := s.cache.GetIncidentFromCache(ctx, id)
		if err != nil {
			log.WithError(err).Warn("Failed to read incident from cache")
		} else if cached != nil {
			return *cached, nil
		}
	}

	incident, err := s.load(ctx, id)
	if err != nil {
		return models.Incident{}, err
	}

	if s.cache != nil {
		if err := s.cache.SetIncidentCache(ctx, incident); err != nil {
			log.WithError(err).Warn("Failed to write incident to cache")
		}
	}
	return incident, nil
}

// GetIncidentDetails дополняет инцидент именами гражданина и спасателя.
// Сбой реестра не мешает ответу: имя остается пустым.
func (s *sosService) GetIncidentDetails(ctx context.Context, id uuid.UUID) (models.IncidentDetails, error) {
	incident, err := s.GetIncident(ctx, id)
	if err != nil {
		return models.IncidentDetails{}, err
	}

	details := models.IncidentDetails{Incident: incident}
	if s.identity == nil {
		return details, nil
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":     "sos",
		"method":      "GetIncidentDetails",
		"incident_id": id,
	})

	var g errgroup.Group
	g.Go(func() error {
		name, err := s.identity.DisplayName(ctx, incident.CitizenID)
		if err != nil {
			log.WithError(apperror.NewDependency("identity", err)).Warn("Citizen name enrichment skipped")
			return nil
		}
		details.CitizenName = name
		return nil
	})
	if incident.IsAssigned() {
		g.Go(func() error {
			name, err := s.identity.DisplayName(ctx, incident.AssignedRescuerID)
			if err != nil {
				log.WithError(apperror.NewDependency("identity", err)).Warn("Rescuer name enrichment skipped")
				return nil
			}
			details.RescuerName = name
			return nil
		})
	}
	_ = g.Wait()

	return details, nil
}

// ListIncidents возвращает список инцидентов с пагинацией
func (s *sosService) ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperror.NewValidation("status", "unknown status "+string(filter.Status))
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":    "sos",
		"method":     "ListIncidents",
		"city_scope": filter.CityScope,
		"status":     filter.Status,
		"page":       filter.Page,
		"page_size":  filter.PageSize,
	})
	log.Info("Listing incidents")

	incidents, err := s.repo.ListIncidents(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Info("Incidents listed successfully")
	return incidents, nil
}

// GetStats считает инциденты по статусам за окно STATS_TIME_WINDOW_MINUTES
func (s *sosService) GetStats(ctx context.Context, cityScope string) (map[models.Status]int, error) {
	window := time.Duration(s.cfg.StatsTimeWindowMinutes) * time.Minute
	since := s.clock().UTC().Add(-window)

	log := s.logger.WithFields(logrus.Fields{
		"service":    "sos",
		"method":     "GetStats",
		"city_scope": cityScope,
		"since":      since,
	})

	counts, err := s.repo.CountByStatus(ctx, cityScope, since)
	if err != nil {
		log.WithError(err).Error("Failed to count incidents by status")
		return nil, fmt.Errorf("service: could not get stats: %w", err)
	}
	return counts, nil
}

// AssignRescuer назначает спасателя одним действием автомата.
// Проигранная гонка версии повторяется один раз на свежем значении.
func (s *sosService) AssignRescuer(ctx context.Context, id uuid.UUID, rescuerID string, actor models.Actor) (models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "sos",
		"method":      "AssignRescuer",
		"incident_id": id,
		"rescuer_id":  rescuerID,
		"actor_id":    actor.ID,
	})
	log.Info("Attempting to assign rescuer")

	next, change, err := s.apply(ctx, id, func(inc models.Incident, now time.Time) (models.Incident, statemachine.Change, error) {
		return statemachine.Assign(inc, rescuerID, actor, now)
	})
	if err != nil {
		if apperror.IsConflict(err) {
			s.metrics.IncAssignmentConflicts()
		}
		log.WithError(err).Warn("Rescuer assignment rejected")
		return models.Incident{}, err
	}
	if change.Noop {
		log.Info("Rescuer already assigned, nothing to do")
		return next, nil
	}

	s.publisher.Publish(ctx, events.Event{
		Type:       events.RescuerAssigned,
		IncidentID: next.ID,
		CityScope:  next.CityScope,
		Timestamp:  change.At,
		Payload: events.AssignmentPayload{
			RescuerID: rescuerID,
			Status:    string(next.Status),
			ActorID:   actor.ID,
		},
	})
	if change.StatusChanged {
		s.publishStatusChanged(ctx, next, change)
	}

	log.WithField("status", next.Status).Info("Rescuer assigned successfully")
	return next, nil
}

// UpdateStatus применяет запрошенный переход. Закрытие инцидента отзывает его миссии.
func (s *sosService) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status, actor models.Actor) (models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "sos",
		"method":      "UpdateStatus",
		"incident_id": id,
		"to":          status,
		"actor_id":    actor.ID,
	})
	log.Info("Attempting to change incident status")

	next, change, err := s.apply(ctx, id, func(inc models.Incident, now time.Time) (models.Incident, statemachine.Change, error) {
		return statemachine.Transition(inc, status, actor, now)
	})
	if err != nil {
		log.WithError(err).Warn("Status change rejected")
		return models.Incident{}, err
	}

	s.publishStatusChanged(ctx, next, change)

	if next.Status.IsTerminal() {
		terminal := events.Resolved
		if next.Status == models.StatusCancelled {
			terminal = events.Cancelled
		}
		s.publisher.Publish(ctx, events.Event{
			Type:       terminal,
			IncidentID: next.ID,
			CityScope:  next.CityScope,
			Timestamp:  change.At,
			Payload: events.StatusPayload{
				From:      string(change.From),
				To:        string(change.To),
				ActorID:   actor.ID,
				ActorRole: string(actor.Role),
			},
		})

		if s.missions != nil {
			revoked, err := s.missions.RevokeAllForIncident(ctx, next.ID)
			if err != nil {
				log.WithError(err).Error("Failed to revoke missions of closed incident")
			} else {
				log.WithField("revoked", revoked).Info("Missions of closed incident revoked")
			}
		}
	}

	log.WithField("from", change.From).Info("Incident status changed successfully")
	return next, nil
}

// RecordLocation сохраняет точку трека и текущее местоположение
func (s *sosService) RecordLocation(ctx context.Context, id uuid.UUID, point models.Point, accuracy float64) (models.LocationUpdate, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "sos",
		"method":      "RecordLocation",
		"incident_id": id,
	})

	if !geo.Valid(point) {
		return models.LocationUpdate{}, apperror.NewValidation("location", "coordinates out of range")
	}
	if accuracy < 0 {
		return models.LocationUpdate{}, apperror.NewValidation("accuracy", "must not be negative")
	}

	incident, err := s.load(ctx, id)
	if err != nil {
		return models.LocationUpdate{}, err
	}
	if incident.Status.IsTerminal() {
		return models.LocationUpdate{}, apperror.NewValidation("incident", "incident is closed")
	}

	update := &models.LocationUpdate{
		IncidentID: id,
		Point:      point,
		Accuracy:   accuracy,
		RecordedAt: s.clock().UTC(),
	}
	if err := s.repo.UpdateLocation(ctx, update); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return models.LocationUpdate{}, apperror.NewNotFound("incident", id.String())
		}
		log.WithError(err).Error("Failed to save location update")
		return models.LocationUpdate{}, fmt.Errorf("service: could not record location: %w", err)
	}
	s.invalidate(ctx, id, log)

	s.publisher.Publish(ctx, events.Event{
		Type:       events.LocationUpdated,
		IncidentID: id,
		CityScope:  incident.CityScope,
		Timestamp:  update.RecordedAt,
		Payload:    events.LocationPayload{Lat: point.Lat, Lng: point.Lng, Accuracy: accuracy},
	})
	return *update, nil
}

// SendMessage сохраняет сообщение комнаты и рассылает его участникам
func (s *sosService) SendMessage(ctx context.Context, id uuid.UUID, sender models.Actor, content string) (models.Message, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "sos",
		"method":      "SendMessage",
		"incident_id": id,
		"sender_id":   sender.ID,
	})

	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, apperror.NewValidation("content", "must not be empty")
	}
	if len([]rune(content)) > maxMessageLength {
		return models.Message{}, apperror.NewValidation("content", fmt.Sprintf("must be at most %d characters", maxMessageLength))
	}
	if !sender.Role.IsValid() {
		return models.Message{}, apperror.NewValidation("sender_role", "unknown role "+string(sender.Role))
	}

	incident, err := s.load(ctx, id)
	if err != nil {
		return models.Message{}, err
	}
	if incident.Status.IsTerminal() {
		return models.Message{}, apperror.NewValidation("incident", "incident is closed")
	}

	msg := models.Message{
		ID:         uuid.New(),
		IncidentID: id,
		SenderID:   sender.ID,
		SenderRole: sender.Role,
		Content:    content,
		SentAt:     s.clock().UTC(),
	}
	if err := s.repo.SaveMessage(ctx, msg); err != nil {
		log.WithError(err).Error("Failed to save message")
		return models.Message{}, fmt.Errorf("service: could not send message: %w", err)
	}

	s.publisher.Publish(ctx, events.Event{
		Type:       events.MessageSent,
		IncidentID: id,
		CityScope:  incident.CityScope,
		Timestamp:  msg.SentAt,
		Payload: events.MessagePayload{
			MessageID:  msg.ID,
			SenderID:   msg.SenderID,
			SenderRole: string(msg.SenderRole),
			Content:    msg.Content,
		},
	})
	return msg, nil
}

// ListMessages возвращает историю сообщений комнаты, старые первыми
func (s *sosService) ListMessages(ctx context.Context, id uuid.UUID, limit int) ([]models.Message, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, id, limit)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service":     "sos",
			"method":      "ListMessages",
			"incident_id": id,
		}).WithError(err).Error("Failed to list messages")
		return nil, fmt.Errorf("service: could not list messages: %w", err)
	}
	return messages, nil
}

type mutation func(inc models.Incident, now time.Time) (models.Incident, statemachine.Change, error)

// apply читает свежее значение мимо кеша, применяет действие автомата и
// сохраняет его условным обновлением. После ErrStaleVersion делается одна
// повторная попытка, вторая проигранная гонка - ConflictError.
func (s *sosService) apply(ctx context.Context, id uuid.UUID, mutate mutation) (models.Incident, statemachine.Change, error) {
	const attempts = 2
	for attempt := 1; ; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return models.Incident{}, statemachine.Change{}, err
		}

		next, change, err := mutate(current, s.clock().UTC())
		if err != nil {
			return models.Incident{}, statemachine.Change{}, err
		}
		if change.Noop {
			return current, change, nil
		}

		err = s.repo.Update(ctx, next, current.Version)
		switch {
		case err == nil:
			s.invalidate(ctx, id, s.logger.WithField("incident_id", id))
			if change.StatusChanged {
				s.metrics.ObserveTransition(string(change.From), string(change.To))
			}
			return next, change, nil
		case errors.Is(err, apperror.ErrStaleVersion):
			if attempt < attempts {
				continue
			}
			return models.Incident{}, statemachine.Change{}, &apperror.ConflictError{
				Resource: "incident",
				ID:       id.String(),
				Reason:   "incident was modified concurrently",
			}
		case errors.Is(err, apperror.ErrNotFound):
			return models.Incident{}, statemachine.Change{}, apperror.NewNotFound("incident", id.String())
		default:
			return models.Incident{}, statemachine.Change{}, fmt.Errorf("service: could not update incident: %w", err)
		}
	}
}

func (s *sosService) load(ctx context.Context, id uuid.UUID) (models.Incident, error) {
	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return models.Incident{}, apperror.NewNotFound("incident", id.String())
		}
		s.logger.WithFields(logrus.Fields{
			"service":     "sos",
			"incident_id": id,
		}).WithError(err).Error("Failed to get incident in repository")
		return models.Incident{}, fmt.Errorf("service: could not get incident: %w", err)
	}
	return incident, nil
}

func (s *sosService) invalidate(ctx context.Context, id uuid.UUID, log *logrus.Entry) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateIncidentCache(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate incident cache")
	}
}

func (s *sosService) publishStatusChanged(ctx context.Context, inc models.Incident, change statemachine.Change) {
	s.publisher.Publish(ctx, events.Event{
		Type:       events.StatusChanged,
		IncidentID: inc.ID,
		CityScope:  inc.CityScope,
		Timestamp:  change.At,
		Payload: events.StatusPayload{
			From:      string(change.From),
			To:        string(change.To),
			ActorID:   change.Actor.ID,
			ActorRole: string(change.Actor.Role),
		},
	})
}
