package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/config"
	"github.com/mbolis/quick-form/database"
	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/mongodb"
	"github.com/mbolis/quick-form/realtime"
	"github.com/mbolis/quick-form/routes"
	"github.com/mbolis/quick-form/seed"
	"github.com/mbolis/quick-form/store"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	s, err := openStore(cfg)
	if err != nil {
		log.Fatal("main.store.open:", err)
	}
	defer s.Close()

	err = bootstrap(context.Background(), s, cfg)
	if err != nil {
		log.Fatal("main.bootstrap:", err)
	}

	hub := realtime.NewHub()
	defer hub.Close()
	guard := app.NewSubmissionGuard()
	defer guard.Close()

	app := app.App{
		Store:        s,
		BearerServer: httpx.NewBearerServer(s, cfg),
		Config:       cfg,
		Hub:          hub,
		Tickets:      realtime.NewTickets(realtime.TicketKey(cfg.TokenSecret), cfg.StreamTTL),
		Guard:        guard,
	}

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		log.Warn("using the in-memory store: data is lost on exit")
		return store.NewMemory(), nil
	case config.StoreMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return mongodb.Open(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return database.Open(cfg.DBUrl)
	}
}

// bootstrap installs the admin user and the sample forms asked for.
func bootstrap(ctx context.Context, s store.Store, cfg config.Config) error {
	if cfg.AdminPassword != "" {
		hash, err := httpx.HashPassword(cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		if err := s.PutUser(ctx, cfg.AdminUser, hash); err != nil {
			return err
		}
		log.Infof("admin user %q ready", cfg.AdminUser)
	}

	if cfg.Seed == "" {
		return nil
	}
	var forms []model.FormDefinition
	var err error
	if cfg.Seed == config.SeedDefault {
		forms, err = seed.Default()
	} else {
		forms, err = loadSeedFile(cfg.Seed)
	}
	if err != nil {
		return err
	}
	_, err = seed.Apply(ctx, s, forms)
	return err
}

func loadSeedFile(path string) ([]model.FormDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return seed.Load(f)
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
