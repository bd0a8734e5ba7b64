package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/screening-reservation/internal/config"
	"github.com/iliyamo/screening-reservation/internal/database"
	"github.com/iliyamo/screening-reservation/internal/handler"
	"github.com/iliyamo/screening-reservation/internal/ledger"
	"github.com/iliyamo/screening-reservation/internal/logger"
	"github.com/iliyamo/screening-reservation/internal/middleware"
	"github.com/iliyamo/screening-reservation/internal/model"
	"github.com/iliyamo/screening-reservation/internal/payment"
	"github.com/iliyamo/screening-reservation/internal/queue"
	"github.com/iliyamo/screening-reservation/internal/repository"
	"github.com/iliyamo/screening-reservation/internal/router"
	"github.com/iliyamo/screening-reservation/internal/service"
)

// stores is the storage backend selected by STORAGE_DRIVER.
type stores struct {
	reservations service.ReservationStore
	screenings   service.ScreeningStore
	users        handler.UserStore
	close        func() error
}

func main() {
	cfg := config.Load() // Load environment config

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
	zl.Info("server exited gracefully")
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger) error {
	st, err := openStores(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	if err := bootstrapAdmin(ctx, cfg, st.users, zl); err != nil {
		return err
	}

	rdb := connectRedis(ctx, zl)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}
	cacheCfg := config.LoadCacheConfig()

	deps := service.Deps{
		Reservations: st.reservations,
		Screenings:   st.screenings,
		Ledger:       ledger.New(),
		Payments:     payment.NewSimulated(cfg.PaymentLatency),
		// screenings created by admins or the scheduler must not be
		// hidden behind cached catalog responses
		CatalogChanged: func(ctx context.Context) {
			if rdb == nil || !cacheCfg.Enabled {
				return
			}
			if n, err := middleware.Purge(ctx, rdb, cacheCfg.Prefix); err != nil {
				zl.Warn("cache purge failed", zap.Error(err))
			} else {
				zl.Debug("cache purged", zap.Int("keys", n))
			}
		},
		Logger: zl,
	}

	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.RabbitURL, zl.Named("events"))
		defer func() { _ = pub.Close() }()
		deps.Events = pub

		consumer := queue.NewConsumer(cfg.RabbitURL, zl.Named("events"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("reservation consumer stopped", zap.Error(err))
			}
		}()
	}

	engine := service.NewEngine(deps)
	catalog := service.NewCatalog(deps, cfg.MaxSeats)
	reconciler := service.NewReconciler(deps)

	// the ledger must reflect every active reservation before the first booking
	rep, err := reconciler.Rebuild(ctx)
	if err != nil {
		return err
	}
	zl.Info("seat ledger rebuilt",
		zap.Int("screenings", rep.Screenings),
		zap.Int("holdings", rep.Holdings),
		zap.Int("conflicts", rep.Conflicts))

	if cfg.SeedEnabled {
		go runScheduler(ctx, service.NewScheduler(deps, catalog, cfg.SeedMovieIDs), zl)
	}
	if cfg.ReconcileInterval > 0 {
		go runSweeps(ctx, reconciler, cfg.ReconcileInterval, zl)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(zl.Named("http")))

	router.Register(e, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, st.users, zl),
		Screenings:   handler.NewScreeningHandler(catalog, engine, zl),
		Reservations: handler.NewReservationHandler(engine, zl),
	}, router.Middleware{
		Cache:     middleware.NewRedisCache(cacheCfg, rdb, zl),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("storage", cfg.StorageDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	zl.Info("shutting down server")

	// give outstanding requests (and their persistence steps) time to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.Config, zl *zap.Logger) (stores, error) {
	if cfg.StorageDriver == config.DriverMemory {
		zl.Warn("using in-memory storage; data is lost on restart")
		mem := repository.NewMemoryStore()
		return stores{
			reservations: mem.Reservations(),
			screenings:   mem.Screenings(),
			users:        mem.Users(),
			close:        func() error { return nil },
		}, nil
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return stores{}, err
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db, zl); err != nil {
			_ = db.Close()
			return stores{}, err
		}
	}
	return mysqlStores(db), nil
}

func mysqlStores(db *sql.DB) stores {
	return stores{
		reservations: repository.NewReservationRepo(db),
		screenings:   repository.NewScreeningRepo(db),
		users:        repository.NewUserRepo(db),
		close:        db.Close,
	}
}

// bootstrapAdmin provisions the ADMIN_EMAIL account.  An existing
// account is left as it is.
func bootstrapAdmin(ctx context.Context, cfg config.Config, users handler.UserStore, zl *zap.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	_, err := users.Create(ctx, cfg.AdminEmail, cfg.AdminPassword, model.RoleAdmin, cfg.BcryptCost)
	switch {
	case err == nil:
		zl.Info("administrator account created", zap.String("email", cfg.AdminEmail))
	case errors.Is(err, repository.ErrEmailExists):
		zl.Info("administrator account already exists", zap.String("email", cfg.AdminEmail))
	default:
		return err
	}
	return nil
}

// connectRedis returns nil when Redis is disabled or unreachable; the
// cache and rate limiter then pass requests through.
func connectRedis(ctx context.Context, zl *zap.Logger) *redis.Client {
	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		zl.Warn("redis unavailable; cache and rate limit disabled", zap.Error(err))
		return nil
	}
	return rdb
}

func runSweeps(ctx context.Context, r *service.Reconciler, every time.Duration, zl *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		rep, err := r.Sweep(ctx)
		if err != nil {
			if ctx.Err() == nil {
				zl.Error("ledger sweep failed", zap.Error(err))
			}
			continue
		}
		if rep.Released > 0 || rep.Restored > 0 || rep.Conflicts > 0 {
			zl.Warn("ledger sweep repaired drift",
				zap.Int("released", rep.Released),
				zap.Int("restored", rep.Restored),
				zap.Int("conflicts", rep.Conflicts))
		}
	}
}

func runScheduler(ctx context.Context, s *service.Scheduler, zl *zap.Logger) {
	t := time.NewTicker(24 * time.Hour)
	defer t.Stop()
	for {
		created, err := s.EnsureWeek(ctx, time.Now().UTC())
		if err != nil {
			zl.Error("weekly schedule failed", zap.Error(err))
		} else if len(created) > 0 {
			zl.Info("weekly schedule created screenings", zap.Int("count", len(created)))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
