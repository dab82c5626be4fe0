package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/sos_dispatch_system/internal/apperror"
	"github.com/sirupsen/logrus"
)

// writeError переводит доменную ошибку в HTTP-ответ
func writeError(c *gin.Context, log *logrus.Entry, err error) {
	var (
		validationErr *apperror.ValidationError
		notFoundErr   *apperror.NotFoundError
		transitionErr *apperror.InvalidTransitionError
		missionErr    *apperror.MissionExpiredError
		conflictErr   *apperror.ConflictError
		forbiddenErr  *apperror.ForbiddenError
		dependencyErr *apperror.DependencyError
	)

	switch {
	case errors.As(err, &validationErr):
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &notFoundErr):
		log.WithError(err).Warn("Resource not found")
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &transitionErr):
		log.WithError(err).Warn("Transition rejected")
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
			"from":  transitionErr.From,
			"to":    transitionErr.To,
		})
	case errors.As(err, &missionErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &conflictErr):
		log.WithError(err).Warn("Conflict")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &forbiddenErr):
		log.WithError(err).Warn("Access denied")
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &dependencyErr):
		log.WithError(err).Error("Dependency failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream dependency failed"})
	default:
		log.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
