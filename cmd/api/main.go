package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ventortech/merpwms/internal/config"
	"github.com/ventortech/merpwms/internal/database"
	"github.com/ventortech/merpwms/internal/handlers"
	"github.com/ventortech/merpwms/internal/logger"
	"github.com/ventortech/merpwms/internal/metrics"
	"github.com/ventortech/merpwms/internal/picking"
	"github.com/ventortech/merpwms/internal/repository"
	"github.com/ventortech/merpwms/internal/services/odoo"
	"github.com/ventortech/merpwms/internal/twofactor"
	"github.com/ventortech/merpwms/internal/utils"
	"github.com/ventortech/merpwms/internal/wave"
	"github.com/ventortech/merpwms/internal/websocket"
	"github.com/ventortech/merpwms/web"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	lg := logger.New(cfg.NodeEnv, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to connect to database")
	}

	// 3. Auto-Migrate Schema
	if err := db.Migrate(); err != nil {
		lg.Warn().Err(err).Msg("migration warning")
	} else {
		lg.Info().Msg("schema synchronized")
	}

	waveStore := repository.NewWaveStore(db.DB)
	pickingStore := repository.NewPickingStore(db.DB)
	userStore := repository.NewUserStore(db.DB)

	if err := ensureAdmin(ctx, userStore); err != nil {
		lg.Warn().Err(err).Msg("could not create initial administrator")
	}

	// 4. Stock backend: the host ERP when configured, the local store otherwise
	var stock wave.StockBackend = wave.NewLocalStock(waveStore)
	var syncSvc *odoo.SyncService
	if cfg.Odoo.URL != "" {
		client := odoo.NewClient(cfg.Odoo.URL, cfg.Odoo.Database, cfg.Odoo.Username, cfg.Odoo.Password)
		stock = odoo.NewStockBackend(client, lg)
		syncSvc = odoo.NewSyncService(client, db.DB, pickingStore, cfg.Odoo, lg)
		syncSvc.Start(ctx)
	} else {
		lg.Info().Msg("ODOO_URL not set, stock transitions stay local")
	}

	// 5. Services
	m := metrics.New()
	hub := websocket.NewHub(lg)
	go hub.Run(ctx)

	waves := wave.NewService(waveStore, stock, lg, wave.WithNotifier(wave.Notifiers{hub, m}))
	lists := picking.NewService(pickingStore, lg)
	logins := twofactor.NewService(userStore, cfg.JWTSecret, cfg.TwoFactor, lg, twofactor.WithObserver(m.ObserveLogin))

	pages, err := web.Load()
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to parse login templates")
	}

	deps := handlers.Deps{
		Batches:      waves,
		Pickings:     lists,
		Routing:      pickingStore,
		Logins:       logins,
		Users:        userStore,
		Pages:        pages,
		Hub:          hub,
		Metrics:      m,
		JWTSecret:    cfg.JWTSecret,
		SecureCookie: cfg.IsProduction(),
		Log:          lg,
	}
	if syncSvc != nil {
		deps.Sync = syncSvc
	}
	router := handlers.NewRouter(deps)

	// 6. Start server with graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info().Str("port", cfg.Port).Str("env", cfg.NodeEnv).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	lg.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if syncSvc != nil {
		syncSvc.Stop()
	}

	// Close database (this also stops embedded PostgreSQL)
	if err := db.Close(); err != nil {
		lg.Error().Err(err).Msg("database close error")
	}

	lg.Info().Msg("shutdown complete")
}

// ensureAdmin creates the first administrator from ADMIN_LOGIN and
// ADMIN_PASSWORD when no user with that login exists
func ensureAdmin(ctx context.Context, users *repository.UserStore) error {
	login, password := os.Getenv("ADMIN_LOGIN"), os.Getenv("ADMIN_PASSWORD")
	if login == "" || password == "" {
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	created, err := users.EnsureAdmin(ctx, login, hash)
	if err != nil {
		return err
	}
	if created {
		log.Info().Str("login", login).Msg("initial administrator created")
	}
	return nil
}
