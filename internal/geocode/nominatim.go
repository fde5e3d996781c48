package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	"zoneops/internal/model"
)

const nominatimBaseURL = "https://nominatim.openstreetmap.org"

// Nominatim is the free OpenStreetMap search provider. It is unauthenticated
// and rate-limited by courtesy to one request per second. Any non-success
// response, non-JSON body, or empty result set is a soft miss.
type Nominatim struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client
	limiter   *rate.Limiter
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func NewNominatim(baseURL string) *Nominatim {
	if baseURL == "" {
		baseURL = nominatimBaseURL
	}
	return &Nominatim{
		BaseURL:   baseURL,
		UserAgent: "zoneops/1.0",
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (n *Nominatim) Name() string { return "nominatim" }

func (n *Nominatim) Geocode(ctx context.Context, address string) (model.GeoPoint, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return model.GeoPoint{}, err
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", n.BaseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.GeoPoint{}, err
	}
	req.Header.Set("User-Agent", n.UserAgent)

	resp, err := n.HTTP.Do(req)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("%w: %v", ErrNoResult, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.GeoPoint{}, fmt.Errorf("%w: status %d", ErrNoResult, resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return model.GeoPoint{}, fmt.Errorf("%w: decode: %v", ErrNoResult, err)
	}
	if len(results) == 0 {
		return model.GeoPoint{}, ErrNoResult
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("%w: bad lat %q", ErrNoResult, results[0].Lat)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("%w: bad lon %q", ErrNoResult, results[0].Lon)
	}
	return model.GeoPoint{Lat: lat, Lng: lng}, nil
}
