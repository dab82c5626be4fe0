package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/service"
)

type IncidentRepository struct {
	db *pgxpool.Pool
}

func NewIncidentRepository(db *pgxpool.Pool) service.IncidentRepository {
	return &IncidentRepository{db: db}
}

// rowScanner - общий интерфейс pgx.Row и pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

const incidentColumns = `
	id,
	city_scope,
	citizen_id,
	status,
	ST_Y(location::geometry) AS latitude,
	ST_X(location::geometry) AS longitude,
	location_accuracy,
	COALESCE(assigned_rescuer_id, '') AS assigned_rescuer_id,
	notes,
	version,
	created_at,
	updated_at,
	resolved_at,
	cancelled_at`

func scanIncident(row rowScanner) (models.Incident, error) {
	var (
		incident models.Incident
		status   string
	)
	err := row.Scan(
		&incident.ID,
		&incident.CityScope,
		&incident.CitizenID,
		&status,
		&incident.Location.Lat,
		&incident.Location.Lng,
		&incident.LocationAccuracy,
		&incident.AssignedRescuerID,
		&incident.Notes,
		&incident.Version,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.ResolvedAt,
		&incident.CancelledAt,
	)
	incident.Status = models.Status(status)
	return incident, err
}

// Create создает новую запись об инциденте в бд
func (r *IncidentRepository) Create(ctx context.Context, incident models.Incident) error {
	query := `
		INSERT INTO incidents (
			id, city_scope, citizen_id, status, location, location_accuracy,
			assigned_rescuer_id, notes, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326), $7, NULLIF($8, ''), $9, $10, $11, $12);
	`
	_, err := r.db.Exec(ctx, query,
		incident.ID,
		incident.CityScope,
		incident.CitizenID,
		string(incident.Status),
		incident.Location.Lng,
		incident.Location.Lat,
		incident.LocationAccuracy,
		incident.AssignedRescuerID,
		incident.Notes,
		incident.Version,
		incident.CreatedAt,
		incident.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID возвращает инцидент по его UUID
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1;`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Incident{}, fmt.Errorf("incident %s: %w", id, apperror.ErrNotFound)
		}
		return models.Incident{}, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// Update - условное обновление по версии. city_scope и location здесь не меняются.
func (r *IncidentRepository) Update(ctx context.Context, incident models.Incident, expectedVersion int64) error {
	query := `
		UPDATE incidents SET
			status = $1,
			assigned_rescuer_id = NULLIF($2, ''),
			notes = $3,
			version = $4,
			updated_at = $5,
			resolved_at = $6,
			cancelled_at = $7
		WHERE id = $8 AND version = $9;
	`
	cmdTag, err := r.db.Exec(ctx, query,
		string(incident.Status),
		incident.AssignedRescuerID,
		incident.Notes,
		incident.Version,
		incident.UpdatedAt,
		incident.ResolvedAt,
		incident.CancelledAt,
		incident.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	// Ни одной строки: либо инцидента нет, либо версия ушла вперед
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM incidents WHERE id = $1);`, incident.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check incident existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("incident %s: %w", incident.ID, apperror.ErrNotFound)
	}
	return fmt.Errorf("incident %s: %w", incident.ID, apperror.ErrStaleVersion)
}

// UpdateLocation в одной транзакции переносит точку в инцидент и пишет ее в трек
func (r *IncidentRepository) UpdateLocation(ctx context.Context, update *models.LocationUpdate) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin location transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmdTag, err := tx.Exec(ctx, `
		UPDATE incidents SET
			location = ST_SetSRID(ST_MakePoint($1, $2), 4326),
			location_accuracy = $3,
			updated_at = $4
		WHERE id = $5;
	`, update.Point.Lng, update.Point.Lat, update.Accuracy, update.RecordedAt, update.IncidentID)
	if err != nil {
		return fmt.Errorf("failed to update incident location: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("incident %s: %w", update.IncidentID, apperror.ErrNotFound)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO sos_locations (incident_id, location, accuracy, recorded_at)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326), $4, $5) RETURNING id;
	`, update.IncidentID, update.Point.Lng, update.Point.Lat, update.Accuracy, update.RecordedAt).Scan(&update.ID)
	if err != nil {
		return fmt.Errorf("failed to save location update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit location update: %w", err)
	}
	return nil
}

// ListIncidents возвращает список инцидентов с фильтрами и пагинацией
func (r *IncidentRepository) ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	// рассчитываем смещение
	offset := (filter.Page - 1) * filter.PageSize

	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE ($1 = '' OR city_scope = $1)
			AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4;
	`
	rows, err := r.db.Query(ctx, query, filter.CityScope, string(filter.Status), filter.PageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, nil
}

// CountByStatus считает инциденты, открытые после since
func (r *IncidentRepository) CountByStatus(ctx context.Context, cityScope string, since time.Time) (map[models.Status]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM incidents
		WHERE created_at >= $1
			AND ($2 = '' OR city_scope = $2)
		GROUP BY status;
	`
	rows, err := r.db.Query(ctx, query, since, cityScope)
	if err != nil {
		return nil, fmt.Errorf("failed to count incidents by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[models.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error status count iteration: %w", err)
	}
	return counts, nil
}

// SaveMessage сохраняет сообщение комнаты
func (r *IncidentRepository) SaveMessage(ctx context.Context, msg models.Message) error {
	query := `
		INSERT INTO sos_messages (id, incident_id, sender_id, sender_role, content, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.db.Exec(ctx, query, msg.ID, msg.IncidentID, msg.SenderID, string(msg.SenderRole), msg.Content, msg.SentAt)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// ListMessages возвращает последние limit сообщений, старые первыми
func (r *IncidentRepository) ListMessages(ctx context.Context, incidentID uuid.UUID, limit int) ([]models.Message, error) {
	query := `
		SELECT id, incident_id, sender_id, sender_role, content, sent_at
		FROM (
			SELECT id, incident_id, sender_id, sender_role, content, sent_at
			FROM sos_messages
			WHERE incident_id = $1
			ORDER BY sent_at DESC
			LIMIT $2
		) recent
		ORDER BY sent_at ASC;
	`
	rows, err := r.db.Query(ctx, query, incidentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg  models.Message
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.IncidentID, &msg.SenderID, &role, &msg.Content, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.SenderRole = models.Role(role)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error message iteration: %w", err)
	}
	return messages, nil
}
