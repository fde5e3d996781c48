package api

import (
	"log"
	"os"
	"strings"

	"zoneops/internal/auth"
	"zoneops/internal/config"
	"zoneops/internal/geocode"
	"zoneops/internal/store"
	"zoneops/internal/webhooks"
	"zoneops/internal/zoning"
)

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Broker EventBroker
	Recalc *zoning.Recalculator
}

// NewServer wires the record store, geocoder chain, recalculator, event
// broker and webhook publisher. Store selection: DATABASE_URL wins, then
// RECORD_STORE_URL, then in-memory.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		// Run migrations (dev helper)
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := sp.MigrateDir("db/migrations"); err != nil {
				log.Printf("migrate: %v", err)
			}
		}
		s = sp
	case strings.TrimSpace(cfg.RecordStoreURL) != "":
		s = store.NewRemote(cfg.RecordStoreURL)
	default:
		s = store.NewMemory()
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(); err == nil {
			broker = rb
		} else {
			log.Printf("redis broker unavailable, using in-memory: %v", err)
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	chain := geocode.NewChain(s,
		geocode.NewNominatim(cfg.GeocoderURL),
		geocode.NewKeyed("", cfg.GeocoderAPIKey),
	)
	recalc := zoning.NewRecalculator(s, chain, cfg.DefaultZoneRadiusKm, cfg.GeocodeConcurrency)

	return &Server{
		Store:  s,
		Pub:    webhooks.NewPublisher(s),
		Auth:   auth.NewVerifierFromEnv(),
		Broker: broker,
		Recalc: recalc,
	}, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}
