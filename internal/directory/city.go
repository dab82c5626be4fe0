package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type departmentsResponse struct {
	CityCode    string   `json:"cityCode"`
	Departments []string `json:"departments"`
}

// CityClient - клиент городского реестра, отдает ведомства по типу происшествия
type CityClient struct {
	httpClient *resty.Client
	logger     *logrus.Logger
}

// NewCityClient создает клиент городского реестра
func NewCityClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *CityClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(100*time.Millisecond).
		SetHeader("Accept", "application/json")

	return &CityClient{httpClient: client, logger: logger}
}

// DepartmentsFor возвращает уникальные коды ведомств города для типа происшествия
func (c *CityClient) DepartmentsFor(ctx context.Context, incidentType, cityCode string) ([]string, error) {
	var (
		result  departmentsResponse
		failure errorResponse
	)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("cityCode", cityCode).
		SetQueryParam("incidentType", incidentType).
		SetResult(&result).
		SetError(&failure).
		Get("/cities/{cityCode}/departments")
	if err != nil {
		return nil, fmt.Errorf("failed to call city registry: %w", err)
	}
	if resp.IsError() {
		c.logger.WithFields(logrus.Fields{
			"component":     "city_client",
			"city_code":     cityCode,
			"incident_type": incidentType,
			"status_code":   resp.StatusCode(),
			"error":         failure.Error,
		}).Warn("City registry returned error")
		return nil, fmt.Errorf("city registry error: status %d", resp.StatusCode())
	}
	return lo.Uniq(lo.Compact(result.Departments)), nil
}
