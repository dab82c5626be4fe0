package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/service"
)

// maxHQCandidates ограничивает выборку, итоговый выбор делает сервис
const maxHQCandidates = 20

type HeadquartersRepository struct {
	db *pgxpool.Pool
}

func NewHeadquartersRepository(db *pgxpool.Pool) service.HQReference {
	return &HeadquartersRepository{db: db}
}

// FindActiveWithin находит активные штабы в радиусе maxDistanceKm, ближайшие первыми
func (r *HeadquartersRepository) FindActiveWithin(ctx context.Context, point models.Point, maxDistanceKm float64, departments []string) ([]models.Headquarters, error) {
	if departments == nil {
		departments = []string{}
	}

	query := `
		SELECT
			id,
			name,
			scope_level,
			city_code,
			ST_Y(location::geometry) AS latitude,
			ST_X(location::geometry) AS longitude,
			coverage_radius_km,
			department_codes,
			active
		FROM headquarters
		WHERE
			active
			AND ST_DWithin(
				location,
				ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
				$3 * 1000
			)
			AND (cardinality($4::text[]) = 0 OR department_codes && $4::text[])
		ORDER BY ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography)
		LIMIT $5;
	`
	rows, err := r.db.Query(ctx, query, point.Lng, point.Lat, maxDistanceKm, departments, maxHQCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to find headquarters within radius: %w", err)
	}
	defer rows.Close()

	hqs := make([]models.Headquarters, 0)
	for rows.Next() {
		var (
			hq         models.Headquarters
			scopeLevel string
		)
		err := rows.Scan(
			&hq.ID,
			&hq.Name,
			&scopeLevel,
			&hq.CityCode,
			&hq.Location.Lat,
			&hq.Location.Lng,
			&hq.CoverageRadiusKm,
			&hq.DepartmentCodes,
			&hq.Active,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan headquarters row: %w", err)
		}
		hq.ScopeLevel = models.ScopeLevel(scopeLevel)
		hqs = append(hqs, hq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error headquarters iteration: %w", err)
	}
	return hqs, nil
}
