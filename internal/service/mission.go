package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/config"
	"github.com/shenikar/sos_dispatch_system/internal/events"
	"github.com/shenikar/sos_dispatch_system/internal/metrics"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	missionTokenPrefix = "msn_"
	missionTokenBytes  = 32
)

// MissionRepository определяет контракт хранилища миссий.
// Ключ поиска - sha256 токена, сам токен не хранится.
type MissionRepository interface {
	Create(ctx context.Context, mission models.Mission) error
	GetByTokenHash(ctx context.Context, tokenHash string) (models.Mission, error)
	// Revoke возвращает миссию и true, если она была отозвана этим вызовом
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) (models.Mission, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.Mission, error)
	// RevokeAllForIncident возвращает id миссий, отозванных этим вызовом
	RevokeAllForIncident(ctx context.Context, incidentID uuid.UUID, at time.Time) ([]uuid.UUID, error)
	ListByIncident(ctx context.Context, incidentID uuid.UUID) ([]models.Mission, error)
	MarkExpired(ctx context.Context, now time.Time) (int, error)
}

// IncidentReader - то, что нужно от хранилища инцидентов для проверок
type IncidentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.Incident, error)
}

// TokenGenerator выдает новый непрозрачный токен
type TokenGenerator func() (string, error)

// MissionService определяет контракт выдачи и проверки миссий спасателей
type MissionService interface {
	IssueMission(ctx context.Context, in models.MissionRequest) (models.Mission, error)
	VerifyMission(ctx context.Context, token string) (models.Mission, error)
	GetMission(ctx context.Context, missionID uuid.UUID) (models.Mission, error)
	RevokeMission(ctx context.Context, missionID uuid.UUID) error
	RevokeAllForIncident(ctx context.Context, incidentID uuid.UUID) (int, error)
	ListMissions(ctx context.Context, incidentID uuid.UUID) ([]models.Mission, error)
	SweepExpired(ctx context.Context) (int, error)
}

type missionService struct {
	repo      MissionRepository
	incidents IncidentReader
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	cfg       *config.Config
	clock     Clock
	newToken  TokenGenerator
}

// MissionOption настраивает сервис миссий
type MissionOption func(*missionService)

// WithMissionClock подменяет часы
func WithMissionClock(clock Clock) MissionOption {
	return func(s *missionService) { s.clock = clock }
}

// WithTokenGenerator подменяет генератор токенов
func WithTokenGenerator(gen TokenGenerator) MissionOption {
	return func(s *missionService) { s.newToken = gen }
}

// WithMissionMetrics подключает метрики
func WithMissionMetrics(m *metrics.Metrics) MissionOption {
	return func(s *missionService) { s.metrics = m }
}

func NewMissionService(repo MissionRepository, incidents IncidentReader, publisher events.Publisher, logger *logrus.Logger, cfg *config.Config, opts ...MissionOption) MissionService {
	s := &missionService{
		repo:      repo,
		incidents: incidents,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		clock:     time.Now,
		newToken:  GenerateMissionToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateMissionToken возвращает "msn_" + base64url от 32 случайных байт
func GenerateMissionToken() (string, error) {
	buf := make([]byte, missionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not read random bytes: %w", err)
	}
	return missionTokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashMissionToken - ключ поиска миссии
func HashMissionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueMission выдает спасателю доступ к одному инциденту на ограниченное время
func (s *missionService) IssueMission(ctx context.Context, in models.MissionRequest) (models.Mission, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "mission",
		"method":      "IssueMission",
		"incident_id": in.IncidentID,
		"issued_by":   in.IssuedBy,
	})
	log.Info("Attempting to issue mission")

	ttl := in.TTLMinutes
	if ttl == 0 {
		ttl = s.cfg.MissionDefaultTTLMinutes
	}
	if ttl < 1 || ttl > s.cfg.MissionMaxTTLMinutes {
		return models.Mission{}, apperror.NewValidation("ttl_minutes", fmt.Sprintf("must be between 1 and %d", s.cfg.MissionMaxTTLMinutes))
	}

	incident, err := s.incidents.GetByID(ctx, in.IncidentID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return models.Mission{}, apperror.NewNotFound("incident", in.IncidentID.String())
		}
		log.WithError(err).Error("Failed to get incident in repository")
		return models.Mission{}, fmt.Errorf("service: could not issue mission: %w", err)
	}
	if incident.CityScope != in.CityScope {
		return models.Mission{}, apperror.NewValidation("city_scope", "does not match incident city scope")
	}
	if incident.Status.IsTerminal() {
		return models.Mission{}, apperror.NewValidation("incident", "incident is closed")
	}

	token, err := s.newToken()
	if err != nil {
		log.WithError(err).Error("Failed to generate mission token")
		return models.Mission{}, fmt.Errorf("service: could not generate mission token: %w", err)
	}

	now := s.clock().UTC()
	mission := models.Mission{
		ID:           uuid.New(),
		Token:        token,
		TokenHash:    HashMissionToken(token),
		IncidentID:   incident.ID,
		CityScope:    incident.CityScope,
		Capabilities: models.MissionCapabilities(),
		IssuedBy:     in.IssuedBy,
		IssuedAt:     now,
		ExpiresAt:    now.Add(time.Duration(ttl) * time.Minute),
	}

	stored := mission
	stored.Token = ""
	if err := s.repo.Create(ctx, stored); err != nil {
		log.WithError(err).Error("Failed to create mission in repository")
		return models.Mission{}, fmt.Errorf("service: could not issue mission: %w", err)
	}

	s.metrics.IncMissionsIssued()
	s.publisher.Publish(ctx, events.Event{
		Type:       events.MissionIssued,
		IncidentID: incident.ID,
		CityScope:  incident.CityScope,
		Timestamp:  now,
		Payload: events.MissionPayload{
			MissionID: mission.ID,
			IssuedBy:  mission.IssuedBy,
			ExpiresAt: mission.ExpiresAt,
		},
	})

	log.WithFields(logrus.Fields{
		"mission_id": mission.ID,
		"expires_at": mission.ExpiresAt,
	}).Info("Mission issued successfully")
	return mission, nil
}

// VerifyMission проверяет токен. Валидность - чистая проверка времени и отзыва.
func (s *missionService) VerifyMission(ctx context.Context, token string) (models.Mission, error) {
	if token == "" {
		s.metrics.IncMissionRejections("empty")
		return models.Mission{}, &apperror.MissionExpiredError{Reason: "token is empty"}
	}

	mission, err := s.repo.GetByTokenHash(ctx, HashMissionToken(token))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.metrics.IncMissionRejections("unknown")
			return models.Mission{}, &apperror.MissionExpiredError{Reason: "unknown token"}
		}
		s.logger.WithFields(logrus.Fields{
			"service": "mission",
			"method":  "VerifyMission",
		}).WithError(err).Error("Failed to get mission in repository")
		return models.Mission{}, fmt.Errorf("service: could not verify mission: %w", err)
	}

	now := s.clock().UTC()
	switch {
	case mission.RevokedAt != nil:
		s.metrics.IncMissionRejections("revoked")
		return models.Mission{}, &apperror.MissionExpiredError{Reason: "mission revoked"}
	case !mission.IsValidAt(now):
		s.metrics.IncMissionRejections("expired")
		return models.Mission{}, &apperror.MissionExpiredError{Reason: "mission expired"}
	}
	return mission, nil
}

// GetMission возвращает метаданные миссии без токена
func (s *missionService) GetMission(ctx context.Context, missionID uuid.UUID) (models.Mission, error) {
	mission, err := s.repo.GetByID(ctx, missionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return models.Mission{}, apperror.NewNotFound("mission", missionID.String())
		}
		return models.Mission{}, fmt.Errorf("service: could not get mission: %w", err)
	}
	mission.Token = ""
	return mission, nil
}

// RevokeMission идемпотентен: неизвестная или уже отозванная миссия - не ошибка
func (s *missionService) RevokeMission(ctx context.Context, missionID uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "mission",
		"method":     "RevokeMission",
		"mission_id": missionID,
	})

	now := s.clock().UTC()
	mission, revoked, err := s.repo.Revoke(ctx, missionID, now)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			log.Info("Mission not found, nothing to revoke")
			return nil
		}
		log.WithError(err).Error("Failed to revoke mission")
		return fmt.Errorf("service: could not revoke mission: %w", err)
	}
	if !revoked {
		return nil
	}

	s.metrics.AddMissionsRevoked(1)
	s.publisher.Publish(ctx, events.Event{
		Type:       events.MissionRevoked,
		IncidentID: mission.IncidentID,
		CityScope:  mission.CityScope,
		Timestamp:  now,
		Payload:    events.MissionPayload{MissionID: mission.ID, MissionIDs: []uuid.UUID{mission.ID}, Count: 1},
	})
	log.Info("Mission revoked")
	return nil
}

// RevokeAllForIncident отзывает все действующие миссии инцидента и
// возвращает число отозванных этим вызовом
func (s *missionService) RevokeAllForIncident(ctx context.Context, incidentID uuid.UUID) (int, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "mission",
		"method":      "RevokeAllForIncident",
		"incident_id": incidentID,
	})

	now := s.clock().UTC()
	revoked, err := s.repo.RevokeAllForIncident(ctx, incidentID, now)
	if err != nil {
		log.WithError(err).Error("Failed to revoke incident missions")
		return 0, fmt.Errorf("service: could not revoke missions: %w", err)
	}
	count := len(revoked)
	if count == 0 {
		return 0, nil
	}

	s.metrics.AddMissionsRevoked(count)
	s.publisher.Publish(ctx, events.Event{
		Type:       events.MissionRevoked,
		IncidentID: incidentID,
		Timestamp:  now,
		Payload:    events.MissionPayload{MissionIDs: revoked, Count: count},
	})
	log.WithField("count", count).Info("Incident missions revoked")
	return count, nil
}

// ListMissions возвращает миссии инцидента без токенов
func (s *missionService) ListMissions(ctx context.Context, incidentID uuid.UUID) ([]models.Mission, error) {
	missions, err := s.repo.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("service: could not list missions: %w", err)
	}
	return missions, nil
}

// SweepExpired помечает истекшие миссии. На проверку токенов не влияет.
func (s *missionService) SweepExpired(ctx context.Context) (int, error) {
	count, err := s.repo.MarkExpired(ctx, s.clock().UTC())
	if err != nil {
		return 0, fmt.Errorf("service: could not sweep missions: %w", err)
	}
	if count > 0 {
		s.logger.WithFields(logrus.Fields{
			"service": "mission",
			"method":  "SweepExpired",
			"count":   count,
		}).Info("Expired missions marked")
	}
	return count, nil
}

// MissionSweeper периодически вызывает SweepExpired
type MissionSweeper struct {
	missions MissionService
	interval time.Duration
	logger   *logrus.Logger
}

func NewMissionSweeper(missions MissionService, interval time.Duration, logger *logrus.Logger) *MissionSweeper {
	return &MissionSweeper{missions: missions, interval: interval, logger: logger}
}

// Start блокируется до отмены ctx
func (w *MissionSweeper) Start(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	w.logger.WithField("interval", w.interval).Info("Mission sweeper started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Mission sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.missions.SweepExpired(ctx); err != nil {
				w.logger.WithError(err).Error("Mission sweep failed")
			}
		}
	}
}
