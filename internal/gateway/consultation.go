package gateway

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

type consultationRequest struct {
	PatientID  string         `json:"patient_id"`
	AlertID    string         `json:"alert_id"`
	HealthData map[string]any `json:"health_data"`
	Priority   string         `json:"priority"`
}

type consultationResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// HTTPConsultationRequester asks the consultation service to open an
// emergency session. The call returns once the request is acknowledged.
type HTTPConsultationRequester struct {
	endpoint string
	client   *resty.Client
}

func NewHTTPConsultationRequester(endpoint string, cfg ClientConfig) *HTTPConsultationRequester {
	return &HTTPConsultationRequester{
		endpoint: endpoint,
		client:   newClient(cfg),
	}
}

func (c *HTTPConsultationRequester) RequestConsultation(ctx context.Context, patientID, alertID string, healthData map[string]any) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("consultation: %w", ErrNotConfigured)
	}

	var out consultationResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(consultationRequest{
			PatientID:  patientID,
			AlertID:    alertID,
			HealthData: healthData,
			Priority:   "emergency",
		}).
		SetResult(&out).
		SetError(&out).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("consultation request: %w", err)
	}
	if resp.IsError() {
		if out.Error != "" {
			return "", fmt.Errorf("consultation request: %s", out.Error)
		}
		return "", fmt.Errorf("consultation request: %w", statusError(resp))
	}
	return out.SessionID, nil
}
