// Package directory содержит HTTP-клиенты внешних справочников: реестра
// пользователей и городского реестра ведомств. Оба используются только на чтение.
package directory

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

type userResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// IdentityClient получает отображаемые имена пользователей
type IdentityClient struct {
	httpClient *resty.Client
	logger     *logrus.Logger
}

// NewIdentityClient создает клиент реестра пользователей
func NewIdentityClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *IdentityClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(100*time.Millisecond).
		SetHeader("Accept", "application/json")

	return &IdentityClient{httpClient: client, logger: logger}
}

// DisplayName возвращает имя пользователя для карточки инцидента
func (c *IdentityClient) DisplayName(ctx context.Context, userID string) (string, error) {
	var (
		result  userResponse
		failure errorResponse
	)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("userID", userID).
		SetResult(&result).
		SetError(&failure).
		Get("/users/{userID}")
	if err != nil {
		return "", fmt.Errorf("failed to call identity registry: %w", err)
	}
	if resp.IsError() {
		c.logger.WithFields(logrus.Fields{
			"component":   "identity_client",
			"user_id":     userID,
			"status_code": resp.StatusCode(),
			"error":       failure.Error,
		}).Warn("Identity registry returned error")
		if resp.StatusCode() == http.StatusNotFound {
			return "", fmt.Errorf("user %s not found in identity registry", userID)
		}
		return "", fmt.Errorf("identity registry error: status %d", resp.StatusCode())
	}
	return result.DisplayName, nil
}
