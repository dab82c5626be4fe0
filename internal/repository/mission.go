package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/service"
)

type MissionRepository struct {
	db *pgxpool.Pool
}

func NewMissionRepository(db *pgxpool.Pool) service.MissionRepository {
	return &MissionRepository{db: db}
}

const missionColumns = `
	id,
	token_hash,
	incident_id,
	city_scope,
	capabilities,
	issued_by,
	issued_at,
	expires_at,
	revoked_at,
	expired`

func scanMission(row rowScanner) (models.Mission, error) {
	var (
		mission      models.Mission
		capabilities []string
	)
	err := row.Scan(
		&mission.ID,
		&mission.TokenHash,
		&mission.IncidentID,
		&mission.CityScope,
		&capabilities,
		&mission.IssuedBy,
		&mission.IssuedAt,
		&mission.ExpiresAt,
		&mission.RevokedAt,
		&mission.Expired,
	)
	mission.Capabilities = lo.Map(capabilities, func(c string, _ int) models.Capability {
		return models.Capability(c)
	})
	return mission, err
}

// Create сохраняет миссию. Сам токен в бд не попадает.
func (r *MissionRepository) Create(ctx context.Context, mission models.Mission) error {
	query := `
		INSERT INTO missions (id, token_hash, incident_id, city_scope, capabilities, issued_by, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	capabilities := lo.Map(mission.Capabilities, func(c models.Capability, _ int) string { return string(c) })
	_, err := r.db.Exec(ctx, query,
		mission.ID,
		mission.TokenHash,
		mission.IncidentID,
		mission.CityScope,
		capabilities,
		mission.IssuedBy,
		mission.IssuedAt,
		mission.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create mission: %w", err)
	}
	return nil
}

// GetByTokenHash ищет миссию по sha256 токена
func (r *MissionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (models.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions WHERE token_hash = $1;`
	mission, err := scanMission(r.db.QueryRow(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Mission{}, apperror.ErrNotFound
		}
		return models.Mission{}, fmt.Errorf("failed to get mission by token: %w", err)
	}
	return mission, nil
}

// Revoke проставляет revoked_at, если миссия еще не отозвана
func (r *MissionRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) (models.Mission, bool, error) {
	query := `
		UPDATE missions SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
		RETURNING ` + missionColumns + `;`
	mission, err := scanMission(r.db.QueryRow(ctx, query, id, at))
	if err == nil {
		return mission, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Mission{}, false, fmt.Errorf("failed to revoke mission: %w", err)
	}

	// Уже отозвана или не существует
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return models.Mission{}, false, err
	}
	return existing, false, nil
}

// GetByID возвращает миссию по ее UUID
func (r *MissionRepository) GetByID(ctx context.Context, id uuid.UUID) (models.Mission, error) {
	mission, err := scanMission(r.db.QueryRow(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = $1;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Mission{}, apperror.ErrNotFound
		}
		return models.Mission{}, fmt.Errorf("failed to get mission by id: %w", err)
	}
	return mission, nil
}

// RevokeAllForIncident отзывает все действующие миссии инцидента и возвращает их id
func (r *MissionRepository) RevokeAllForIncident(ctx context.Context, incidentID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE missions SET revoked_at = $2
		WHERE incident_id = $1 AND revoked_at IS NULL
		RETURNING id;
	`, incidentID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke incident missions: %w", err)
	}
	revoked, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to collect revoked mission ids: %w", err)
	}
	return revoked, nil
}

// ListByIncident возвращает миссии инцидента в порядке выдачи
func (r *MissionRepository) ListByIncident(ctx context.Context, incidentID uuid.UUID) ([]models.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions WHERE incident_id = $1 ORDER BY issued_at ASC;`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer rows.Close()

	missions := make([]models.Mission, 0)
	for rows.Next() {
		mission, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission row: %w", err)
		}
		missions = append(missions, mission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error mission iteration: %w", err)
	}
	return missions, nil
}

// MarkExpired помечает истекшие миссии флагом expired
func (r *MissionRepository) MarkExpired(ctx context.Context, now time.Time) (int, error) {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE missions SET expired = TRUE
		WHERE expired = FALSE AND expires_at <= $1;
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired missions: %w", err)
	}
	return int(cmdTag.RowsAffected()), nil
}
