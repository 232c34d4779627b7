package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/storefront-session/internal/config"
	"github.com/iliyamo/storefront-session/internal/database"
	"github.com/iliyamo/storefront-session/internal/handler"
	"github.com/iliyamo/storefront-session/internal/logger"
	"github.com/iliyamo/storefront-session/internal/middleware"
	"github.com/iliyamo/storefront-session/internal/queue"
	"github.com/iliyamo/storefront-session/internal/repository"
	"github.com/iliyamo/storefront-session/internal/router"
	"github.com/iliyamo/storefront-session/internal/service"
	"github.com/iliyamo/storefront-session/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real environment wins
	cfg := config.Load()
	lg := logger.New(cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		lg.Fatal().Err(err).Msg("migration failed")
	}

	hasher, err := utils.NewPasswordHasher(cfg.PasswordPepper, cfg.BcryptCost)
	if err != nil {
		lg.Fatal().Err(err).Msg("invalid password hashing config")
	}
	issuer, err := utils.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		lg.Fatal().Err(err).Msg("invalid token config")
	}

	accounts := repository.NewAccountRepo(db)
	tokens := repository.NewTokenRepo(db)
	carts := repository.NewCartRepo(db)
	favorites := repository.NewFavoriteRepo(db)

	deps := service.GuardDeps{
		Accounts: accounts,
		Tokens:   tokens,
		Issuer:   issuer,
		Hasher:   hasher,
		Merger:   service.NewReconciler(db, carts, favorites),
		Log:      lg,
	}
	if url := queue.BrokerURL(); url != "" {
		pub := queue.NewPublisher(url)
		defer pub.Close()
		deps.Events = pub
	} else {
		lg.Info().Msg("RABBITMQ_URL not set, audit events disabled")
	}
	guard := service.NewSessionGuard(deps)

	if cfg.AdminIdentity != "" && cfg.AdminPassword != "" {
		seedAdmin(ctx, guard, cfg)
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := router.New(cfg.CORSOrigin, lg)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, guard, lg), guard, limiter)
	router.RegisterShopper(e, handler.NewShopHandler(guard, carts, favorites, lg), guard)
	router.RegisterAdmin(e, handler.NewAdminHandler(guard, lg), guard)

	addr := ":" + cfg.Port
	go func() {
		lg.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// seedAdmin creates the configured admin account on first start.  An
// existing account with that identity is left alone.
func seedAdmin(ctx context.Context, guard *service.SessionGuard, cfg config.Config) {
	_, err := guard.CreateAdmin(ctx, service.Credentials{Identity: cfg.AdminIdentity, Password: cfg.AdminPassword})
	switch {
	case errors.Is(err, service.ErrConflict):
		log.Debug().Str("identity", cfg.AdminIdentity).Msg("admin account already exists")
	case err != nil:
		log.Fatal().Err(err).Msg("seed admin account")
	default:
		log.Info().Str("identity", cfg.AdminIdentity).Msg("admin account created")
	}
}
