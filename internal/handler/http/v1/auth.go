package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/shenikar/sos_dispatch_system/internal/config"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/realtime"
	"github.com/shenikar/sos_dispatch_system/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	principalKey       = "principal"
	missionTokenHeader = "X-Mission-Token"
	apiKeyHeader       = "X-API-Key"
)

// Способы аутентификации
const (
	AuthAPIKey  = "api_key"
	AuthBearer  = "bearer"
	AuthMission = "mission"
)

// Principal - аутентифицированный вызывающий
type Principal struct {
	ID        string
	Role      models.Role
	CityScope string
	Method    string
	Mission   *models.Mission
}

// Actor - принципал в роли исполнителя операции
func (p Principal) Actor() models.Actor {
	return models.Actor{ID: p.ID, Role: p.Role}
}

// IsStaff - диспетчер, администратор или сервис с API-ключом
func (p Principal) IsStaff() bool {
	return p.Method != AuthMission && p.Actor().CanDispatch()
}

// identityClaims - claims токенов внешнего провайдера идентификации
type identityClaims struct {
	Role      string `json:"role"`
	CityScope string `json:"city_scope"`
	jwt.RegisteredClaims
}

// AuthMiddleware - аутентификация по токену миссии, API-ключу или JWT
func AuthMiddleware(cfg *config.Config, missions service.MissionService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.GetHeader(missionTokenHeader); token != "" {
			mission, err := missions.VerifyMission(c.Request.Context(), token)
			if err != nil {
				log.WithError(err).Warn("Mission token rejected")
				writeError(c, log.WithField("method", "auth"), err)
				c.Abort()
				return
			}
			c.Set(principalKey, Principal{
				ID:        realtime.MissionPrincipalID(mission.ID),
				Role:      models.RoleRescuer,
				CityScope: mission.CityScope,
				Method:    AuthMission,
				Mission:   &mission,
			})
			c.Next()
			return
		}

		apiKey := c.GetHeader(apiKeyHeader)
		bearer := ""
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			bearer = strings.TrimPrefix(authHeader, "Bearer ")
		}
		// Authorization: Bearer может нести и API-ключ
		if apiKey == "" && bearer != "" && lo.Contains(cfg.APIKeys, bearer) {
			apiKey = bearer
		}

		if apiKey != "" {
			if !lo.Contains(cfg.APIKeys, apiKey) {
				log.Warn("Invalid API key provided")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
				return
			}
			c.Set(principalKey, Principal{ID: "api-key", Role: models.RoleSystem, Method: AuthAPIKey})
			c.Next()
			return
		}

		if bearer == "" {
			log.Warn("Credentials missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		principal, err := parseBearer(cfg, bearer)
		if err != nil {
			log.WithError(err).Warn("Bearer token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// parseBearer проверяет подпись HS256, срок, издателя и аудиторию токена
func parseBearer(cfg *config.Config, raw string) (Principal, error) {
	if cfg.JWTSecret == "" {
		return Principal{}, errors.New("bearer tokens are not accepted: JWT_SECRET is not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	if cfg.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(cfg.JWTAudience))
	}

	claims := &identityClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...); err != nil {
		return Principal{}, err
	}

	role := models.Role(claims.Role)
	if claims.Subject == "" {
		return Principal{}, errors.New("token has no subject")
	}
	// system зарезервирована за API-ключами
	if !role.IsValid() || role == models.RoleSystem {
		return Principal{}, errors.New("token carries an unknown role")
	}
	return Principal{
		ID:        claims.Subject,
		Role:      role,
		CityScope: claims.CityScope,
		Method:    AuthBearer,
	}, nil
}

func principalFrom(c *gin.Context) Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(Principal); ok {
			return p
		}
	}
	return Principal{}
}

// RequireStaff пропускает только диспетчеров, администраторов и API-ключи
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !principalFrom(c).IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "dispatcher or admin role required"})
			return
		}
		c.Next()
	}
}

// authorizeIncident проверяет право принципала на действие над инцидентом
// и возвращает сам инцидент. Токен миссии проверяется только по своим правам,
// личность спасателя не учитывается.
func (h *Handler) authorizeIncident(c *gin.Context, incidentID uuid.UUID, capability models.Capability) (models.Incident, error) {
	p := principalFrom(c)

	if p.Method == AuthMission {
		if p.Mission == nil || !p.Mission.Grants(incidentID, capability) {
			return models.Incident{}, apperror.NewForbidden("mission does not grant " + string(capability) + " on this incident")
		}
	}

	incident, err := h.sosService.GetIncident(c.Request.Context(), incidentID)
	if err != nil {
		return models.Incident{}, err
	}

	switch {
	case p.Method == AuthMission:
		return incident, nil
	case p.IsStaff():
		if capability == models.CapabilitySendLocation {
			return models.Incident{}, apperror.NewForbidden("only the citizen or a mission holder reports location")
		}
		if p.Role == models.RoleDispatcher && p.CityScope != "" && p.CityScope != incident.CityScope {
			return models.Incident{}, apperror.NewForbidden("incident belongs to another city scope")
		}
		return incident, nil
	case p.Role == models.RoleCitizen && incident.CitizenID == p.ID:
		if capability == models.CapabilityUpdateStatus {
			return models.Incident{}, apperror.NewForbidden("citizens cannot change incident status")
		}
		return incident, nil
	case p.Role == models.RoleRescuer && incident.AssignedRescuerID == p.ID:
		return incident, nil
	case p.Role == models.RoleDashboard && capability == models.CapabilityView:
		return incident, nil
	}
	return models.Incident{}, apperror.NewForbidden("principal has no access to this incident")
}
