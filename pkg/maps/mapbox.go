package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type MapboxProvider struct {
	accessToken string
	httpClient  *http.Client
	baseURL     string
}

func NewMapboxProvider(accessToken string) *MapboxProvider {
	return &MapboxProvider{
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     "https://api.mapbox.com",
	}
}

func (m *MapboxProvider) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	encodedAddress := url.QueryEscape(address)
	apiURL := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?access_token=%s",
		m.baseURL, encodedAddress, m.accessToken)

	return m.fetchGeocode(ctx, apiURL)
}

func (m *MapboxProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResponse, error) {
	apiURL := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%f,%f.json?access_token=%s",
		m.baseURL, lng, lat, m.accessToken)

	return m.fetchGeocode(ctx, apiURL)
}

func (m *MapboxProvider) fetchGeocode(ctx context.Context, apiURL string) (*GeocodeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Mapbox API error: %s", string(body))
	}

	var mapboxResp struct {
		Features []struct {
			ID        string    `json:"id"`
			PlaceName string    `json:"place_name"`
			PlaceType []string  `json:"place_type"`
			Center    []float64 `json:"center"`
		} `json:"features"`
	}

	if err := json.Unmarshal(body, &mapboxResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	results := make([]GeocodeResult, len(mapboxResp.Features))
	for i, feature := range mapboxResp.Features {
		results[i] = GeocodeResult{
			PlaceID: feature.ID,
			Address: feature.PlaceName,
			Coordinates: Location{
				Latitude:  feature.Center[1],
				Longitude: feature.Center[0],
			},
			Types: feature.PlaceType,
		}
	}

	return &GeocodeResponse{Results: results}, nil
}
