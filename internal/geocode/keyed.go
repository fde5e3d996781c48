package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"zoneops/internal/model"
)

const keyedBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Keyed is the paid fallback provider. It requires a configured API key;
// without one it is a hard failure for the chain (only ever reached after
// the free provider has missed).
type Keyed struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

type keyedResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func NewKeyed(baseURL, apiKey string) *Keyed {
	if baseURL == "" {
		baseURL = keyedBaseURL
	}
	return &Keyed{BaseURL: baseURL, APIKey: apiKey, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (k *Keyed) Name() string { return "google" }

func (k *Keyed) Geocode(ctx context.Context, address string) (model.GeoPoint, error) {
	if k.APIKey == "" {
		return model.GeoPoint{}, ErrMissingAPIKey
	}

	endpoint := fmt.Sprintf("%s?address=%s&key=%s", k.BaseURL, url.QueryEscape(address), url.QueryEscape(k.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.GeoPoint{}, err
	}

	resp, err := k.HTTP.Do(req)
	if err != nil {
		return model.GeoPoint{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.GeoPoint{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var decoded keyedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return model.GeoPoint{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Status != "OK" || len(decoded.Results) == 0 {
		return model.GeoPoint{}, fmt.Errorf("%w: status %s", ErrNoResult, decoded.Status)
	}

	loc := decoded.Results[0].Geometry.Location
	return model.GeoPoint{Lat: loc.Lat, Lng: loc.Lng}, nil
}
