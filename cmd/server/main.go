package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"passgate/internal/activity"
	activityhandler "passgate/internal/activity/handler"
	"passgate/internal/attendance"
	attendancehandler "passgate/internal/attendance/handler"
	"passgate/internal/guardian"
	guardianhandler "passgate/internal/guardian/handler"
	"passgate/internal/identity"
	jwttoken "passgate/internal/jwt_token"
	"passgate/internal/notify"
	"passgate/internal/pass"
	passhandler "passgate/internal/pass/handler"
	"passgate/internal/platform/config"
	"passgate/internal/platform/httpserver"
	"passgate/internal/platform/logger"
	"passgate/internal/platform/metrics"
	"passgate/internal/platform/postgres"
	redisplatform "passgate/internal/platform/redis"
	"passgate/internal/settings"
	settingshandler "passgate/internal/settings/handler"
	httptransport "passgate/internal/transport/http"
	id "passgate/pkg/domain"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres is optional: without a DSN everything runs on in-memory
	// stores, which is how local development and the test suites work.
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
	}

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var rawRedis *goredis.Client
	if redisClient != nil {
		rawRedis = redisClient.Client
		defer redisClient.Close()
	}

	m := metrics.New()

	var (
		passStore       pass.Store
		linkStore       guardian.Store
		attendanceStore attendance.Store
		settingsStore   settings.Store
		ledger          interface {
			pass.Ledger
			activityhandler.Store
		}
	)
	if db != nil {
		passStore = pass.NewPostgres(db)
		linkStore = guardian.NewPostgres(db)
		attendanceStore = attendance.NewPostgres(db)
		settingsStore = settings.NewPostgres(db)
		ledger = activity.NewPostgres(db)
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		passStore = pass.NewInMemoryStore()
		linkStore = guardian.NewInMemoryStore()
		attendanceStore = attendance.NewInMemoryStore()
		settingsStore = settings.NewInMemoryStore()
		ledger = activity.NewInMemoryStore()
	}
	settingsStore = settings.NewCachedStore(settingsStore, rawRedis, log)

	// The user directory is owned by the campus account system; this process
	// only reads it. Until that integration lands we load a snapshot from
	// disk.
	directory := identity.NewInMemoryDirectory()
	if path := os.Getenv("PASSGATE_DIRECTORY_FILE"); path != "" {
		if err := loadDirectory(directory, path); err != nil {
			return fmt.Errorf("load directory snapshot: %w", err)
		}
	}

	dispatcher := notify.NewAsyncDispatcher(
		notify.NewLogSink(log),
		log,
		cfg.NotifyBuffer,
		notify.WithDropCounter(m),
	)

	settingsService := settings.NewService(settingsStore, log)
	guardianService := guardian.NewService(linkStore, directory, log)
	attendanceService := attendance.NewService(attendanceStore, settingsService, log,
		attendance.WithMetrics(m))
	passService := pass.NewService(
		passStore,
		guardianService,
		ledger,
		directory,
		dispatcher,
		settingsService,
		log,
		pass.WithMetrics(m),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "passgate", "passgate-api")
	jwtValidator := jwttoken.NewJWTServiceAdapter(jwtService)

	router := httptransport.NewRouter(httptransport.Deps{
		Handlers: []httptransport.Registrar{
			passhandler.New(passService, log, m, jwtValidator),
			guardianhandler.New(guardianService, log, m, jwtValidator),
			attendancehandler.New(attendanceService, log, m, jwtValidator),
			settingshandler.New(settingsService, log, m, jwtValidator),
			activityhandler.New(ledger, log, m, jwtValidator),
		},
		DB:    db,
		Redis: redisClient,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting passgate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("passgate stopped")
	return nil
}

// loadDirectory reads a JSON snapshot of campus accounts: an array of
// {"id": uuid, "role": string, "display_name": string} objects.
func loadDirectory(directory *identity.InMemoryDirectory, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var entries []struct {
		ID          string `json:"id"`
		Role        string `json:"role"`
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for _, entry := range entries {
		userID, err := id.ParseUserID(entry.ID)
		if err != nil {
			return fmt.Errorf("entry %q: %w", entry.ID, err)
		}
		role, err := id.ParseRole(entry.Role)
		if err != nil {
			return fmt.Errorf("entry %q: %w", entry.ID, err)
		}
		directory.Add(identity.User{ID: userID, Role: role, DisplayName: entry.DisplayName})
	}
	return nil
}
