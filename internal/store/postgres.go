package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"zoneops/internal/model"
)

// Postgres is the durable record store. Schema lives in db/migrations.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// MigrateDir applies every .sql file in dir in lexical order. Statements
// must be idempotent (CREATE TABLE IF NOT EXISTS etc); there is no
// version tracking.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		sqlBytes, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(sqlBytes)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, address, lat, lng, delivery_start, delivery_end, time_slot, geocoded, zoned, COALESCE(zone_id::text,'') FROM orders ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (model.Order, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id::text, address, lat, lng, delivery_start, delivery_end, time_slot, geocoded, zoned, COALESCE(zone_id::text,'') FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNotFound
	}
	return o, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (model.Order, error) {
	var o model.Order
	var lat, lng sql.NullFloat64
	var start, end, slot sql.NullString
	if err := r.Scan(&o.ID, &o.Address, &lat, &lng, &start, &end, &slot, &o.Geocoded, &o.Zoned, &o.ZoneID); err != nil {
		return model.Order{}, err
	}
	if lat.Valid {
		v := lat.Float64
		o.Lat = &v
	}
	if lng.Valid {
		v := lng.Float64
		o.Lng = &v
	}
	o.DeliveryStart = start.String
	o.DeliveryEnd = end.String
	o.TimeSlot = slot.String
	return o, nil
}

func (p *Postgres) CreateOrders(ctx context.Context, orders []model.OrderIn) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	created := 0
	for _, in := range orders {
		var lat, lng any
		if in.Lat != nil {
			lat = *in.Lat
		}
		if in.Lng != nil {
			lng = *in.Lng
		}
		geocoded := in.Lat != nil && in.Lng != nil
		_, err = tx.ExecContext(ctx, `INSERT INTO orders (id, address, lat, lng, delivery_start, delivery_end, time_slot, geocoded, zoned) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false)`,
			uuid.New(), in.Address, lat, lng, nullIfEmpty(in.DeliveryStart), nullIfEmpty(in.DeliveryEnd), nullIfEmpty(in.TimeSlot), geocoded)
		if err != nil {
			return 0, err
		}
		created++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

func (p *Postgres) PatchOrder(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error) {
	if patch.Lat != nil || patch.Lng != nil {
		var lat, lng any
		if patch.Lat != nil {
			lat = *patch.Lat
		}
		if patch.Lng != nil {
			lng = *patch.Lng
		}
		if _, err := p.db.ExecContext(ctx, `UPDATE orders SET lat=COALESCE($1,lat), lng=COALESCE($2,lng), updated_at=now() WHERE id=$3`, lat, lng, id); err != nil {
			return model.Order{}, err
		}
	}
	if patch.Geocoded != nil {
		if _, err := p.db.ExecContext(ctx, `UPDATE orders SET geocoded=$1, updated_at=now() WHERE id=$2`, *patch.Geocoded, id); err != nil {
			return model.Order{}, err
		}
	}
	if patch.Zoned != nil {
		if _, err := p.db.ExecContext(ctx, `UPDATE orders SET zoned=$1, updated_at=now() WHERE id=$2`, *patch.Zoned, id); err != nil {
			return model.Order{}, err
		}
	}
	if patch.ZoneID != nil {
		if _, err := p.db.ExecContext(ctx, `UPDATE orders SET zone_id=$1, updated_at=now() WHERE id=$2`, nullIfEmpty(*patch.ZoneID), id); err != nil {
			return model.Order{}, err
		}
	}
	return p.GetOrder(ctx, id)
}

func (p *Postgres) ListZones(ctx context.Context) ([]model.Zone, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, center_lat, center_lng, radius_km, window_label, order_ids, COALESCE(driver_id::text,''), COALESCE(driver_name,'') FROM zones ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Zone{}
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func (p *Postgres) GetZone(ctx context.Context, id string) (model.Zone, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id::text, center_lat, center_lng, radius_km, window_label, order_ids, COALESCE(driver_id::text,''), COALESCE(driver_name,'') FROM zones WHERE id=$1`, id)
	z, err := scanZone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Zone{}, ErrNotFound
	}
	return z, err
}

func scanZone(r rowScanner) (model.Zone, error) {
	var z model.Zone
	var ids []byte
	if err := r.Scan(&z.ID, &z.CenterLat, &z.CenterLng, &z.RadiusKm, &z.Window, &ids, &z.DriverID, &z.DriverName); err != nil {
		return model.Zone{}, err
	}
	if len(ids) > 0 {
		_ = json.Unmarshal(ids, &z.OrderIDs)
	}
	return z, nil
}

func (p *Postgres) CreateZone(ctx context.Context, z model.Zone) (model.Zone, error) {
	if z.ID == "" {
		z.ID = uuid.New().String()
	}
	ids, _ := json.Marshal(z.OrderIDs)
	_, err := p.db.ExecContext(ctx, `INSERT INTO zones (id, center_lat, center_lng, radius_km, window_label, order_ids, driver_id, driver_name) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		z.ID, z.CenterLat, z.CenterLng, z.RadiusKm, z.Window, ids, nullIfEmpty(z.DriverID), nullIfEmpty(z.DriverName))
	if err != nil {
		return model.Zone{}, err
	}
	return z, nil
}

func (p *Postgres) PatchZone(ctx context.Context, id string, patch model.ZonePatch) (model.Zone, error) {
	if patch.OrderIDs != nil {
		ids, _ := json.Marshal(patch.OrderIDs)
		if _, err := p.db.ExecContext(ctx, `UPDATE zones SET order_ids=$1, updated_at=now() WHERE id=$2`, ids, id); err != nil {
			return model.Zone{}, err
		}
	}
	if patch.DriverID != nil {
		if _, err := p.db.ExecContext(ctx, `UPDATE zones SET driver_id=$1, updated_at=now() WHERE id=$2`, nullIfEmpty(*patch.DriverID), id); err != nil {
			return model.Zone{}, err
		}
	}
	if patch.DriverName != nil {
		if _, err := p.db.ExecContext(ctx, `UPDATE zones SET driver_name=$1, updated_at=now() WHERE id=$2`, nullIfEmpty(*patch.DriverName), id); err != nil {
			return model.Zone{}, err
		}
	}
	return p.GetZone(ctx, id)
}

func (p *Postgres) ListStaff(ctx context.Context) ([]model.Staff, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, name, role, status FROM staff ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Staff{}
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.Name, &s.Role, &s.Status); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateStaff(ctx context.Context, in model.StaffIn) (model.Staff, error) {
	s := model.Staff{ID: uuid.New().String(), Name: in.Name, Role: in.Role, Status: in.Status}
	if s.Status == "" {
		s.Status = model.StatusActive
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO staff (id, name, role, status) VALUES ($1,$2,$3,$4)`, s.ID, s.Name, s.Role, s.Status)
	if err != nil {
		return model.Staff{}, err
	}
	return s, nil
}

func (p *Postgres) PatchStaff(ctx context.Context, id string, patch model.StaffPatch) (model.Staff, error) {
	_, err := p.db.ExecContext(ctx, `UPDATE staff SET name=COALESCE(NULLIF($1,''),name), role=COALESCE(NULLIF($2,''),role), status=COALESCE(NULLIF($3,''),status), updated_at=now() WHERE id=$4`,
		patch.Name, patch.Role, patch.Status, id)
	if err != nil {
		return model.Staff{}, err
	}
	var s model.Staff
	row := p.db.QueryRowContext(ctx, `SELECT id::text, name, role, status FROM staff WHERE id=$1`, id)
	if err := row.Scan(&s.ID, &s.Name, &s.Role, &s.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Staff{}, ErrNotFound
		}
		return model.Staff{}, err
	}
	return s, nil
}

func (p *Postgres) LookupGeocode(ctx context.Context, address string) (model.GeocodeEntry, error) {
	var e model.GeocodeEntry
	var at time.Time
	row := p.db.QueryRowContext(ctx, `SELECT address, lat, lng, provider, created_at FROM geocode_cache WHERE address=$1 ORDER BY created_at LIMIT 1`, address)
	if err := row.Scan(&e.Address, &e.Lat, &e.Lng, &e.Provider, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.GeocodeEntry{}, ErrNotFound
		}
		return model.GeocodeEntry{}, err
	}
	e.CreatedAt = at.Format(time.RFC3339)
	return e, nil
}

func (p *Postgres) SaveGeocode(ctx context.Context, entry model.GeocodeEntry) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO geocode_cache (id, address, lat, lng, provider) VALUES ($1,$2,$3,$4,$5)`,
		uuid.New(), entry.Address, entry.Lat, entry.Lng, entry.Provider)
	return err
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`, id, req.URL, ev, req.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	ev, _ := json.Marshal([]string{eventType})
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE events @> $1::jsonb`, ev)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`, id, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$1, next_attempt_at=$2, response_code=$3, updated_at=now() WHERE id=$4`,
			nullIfEmpty(lastError), *nextAttemptAt, responseCode, id)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', delivered_at=now(), response_code=$1, updated_at=now() WHERE id=$2`, responseCode, id)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$1, response_code=$2, updated_at=now() WHERE id=$3`, nullIfEmpty(lastError), responseCode, id)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE status=$1 ORDER BY created_at LIMIT $2`, status, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries ORDER BY created_at LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var id, typ, st, lastErr, url string
		var attempts int
		var nextAt sql.NullTime
		if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil {
			return nil, err
		}
		m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
		if nextAt.Valid {
			m["nextAttemptAt"] = nextAt.Time
		}
		if lastErr != "" {
			m["lastError"] = lastErr
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now(), updated_at=now() WHERE id=$1`, id)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
