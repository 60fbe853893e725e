package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rideguard/internal/models"
)

// HTTPDispatchClient posts dispatch requests to an external emergency
// services integration endpoint.
type HTTPDispatchClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPDispatchClient(endpoint string) *HTTPDispatchClient {
	return &HTTPDispatchClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPDispatchClient) RequestDispatch(ctx context.Context, emergency *models.Emergency) error {
	payload := map[string]interface{}{
		"emergency_id": emergency.ID.Hex(),
		"type":         emergency.Type,
		"description":  emergency.Description,
		"latitude":     emergency.Location.Latitude(),
		"longitude":    emergency.Location.Longitude(),
		"address":      emergency.Location.Address,
		"created_at":   emergency.CreatedAt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("dispatch endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
