package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zoneops/internal/model"
)

// Remote proxies orders, zones, staff and the geocode cache to an
// external generic record API (JSON resources under a base URL). The
// webhook subscription and delivery queue stay local: the record API
// knows nothing about deliveries.
type Remote struct {
	BaseURL string
	HTTP    *http.Client

	*Memory // local webhook queue + subscriptions
}

func NewRemote(baseURL string) *Remote {
	return &Remote{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Memory:  NewMemory(),
	}
}

func (r *Remote) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("record API %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *Remote) ListOrders(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	if err := r.do(ctx, http.MethodGet, "/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Remote) GetOrder(ctx context.Context, id string) (model.Order, error) {
	var out model.Order
	err := r.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (r *Remote) CreateOrders(ctx context.Context, orders []model.OrderIn) (int, error) {
	created := 0
	for _, in := range orders {
		if err := r.do(ctx, http.MethodPost, "/orders", in, nil); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (r *Remote) PatchOrder(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error) {
	var out model.Order
	err := r.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id), patch, &out)
	return out, err
}

func (r *Remote) ListZones(ctx context.Context) ([]model.Zone, error) {
	var out []model.Zone
	if err := r.do(ctx, http.MethodGet, "/zones", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Remote) GetZone(ctx context.Context, id string) (model.Zone, error) {
	var out model.Zone
	err := r.do(ctx, http.MethodGet, "/zones/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (r *Remote) CreateZone(ctx context.Context, z model.Zone) (model.Zone, error) {
	var out model.Zone
	if err := r.do(ctx, http.MethodPost, "/zones", z, &out); err != nil {
		return model.Zone{}, err
	}
	if out.ID == "" {
		out = z
	}
	return out, nil
}

func (r *Remote) PatchZone(ctx context.Context, id string, patch model.ZonePatch) (model.Zone, error) {
	var out model.Zone
	err := r.do(ctx, http.MethodPatch, "/zones/"+url.PathEscape(id), patch, &out)
	return out, err
}

func (r *Remote) ListStaff(ctx context.Context) ([]model.Staff, error) {
	var out []model.Staff
	if err := r.do(ctx, http.MethodGet, "/staff", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Remote) CreateStaff(ctx context.Context, in model.StaffIn) (model.Staff, error) {
	var out model.Staff
	err := r.do(ctx, http.MethodPost, "/staff", in, &out)
	return out, err
}

func (r *Remote) PatchStaff(ctx context.Context, id string, patch model.StaffPatch) (model.Staff, error) {
	var out model.Staff
	err := r.do(ctx, http.MethodPatch, "/staff/"+url.PathEscape(id), patch, &out)
	return out, err
}

// LookupGeocode queries by exact address; the record API returns every
// matching entry and the first one wins.
func (r *Remote) LookupGeocode(ctx context.Context, address string) (model.GeocodeEntry, error) {
	var out []model.GeocodeEntry
	if err := r.do(ctx, http.MethodGet, "/geocache?address="+url.QueryEscape(address), nil, &out); err != nil {
		return model.GeocodeEntry{}, err
	}
	if len(out) == 0 {
		return model.GeocodeEntry{}, ErrNotFound
	}
	return out[0], nil
}

func (r *Remote) SaveGeocode(ctx context.Context, entry model.GeocodeEntry) error {
	return r.do(ctx, http.MethodPost, "/geocache", entry, nil)
}
