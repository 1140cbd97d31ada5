package main // Entry point for the HTTP API

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/account-authority/internal/cache"
	"github.com/iliyamo/account-authority/internal/config"
	"github.com/iliyamo/account-authority/internal/database"
	"github.com/iliyamo/account-authority/internal/handler"
	"github.com/iliyamo/account-authority/internal/logger"
	"github.com/iliyamo/account-authority/internal/middleware"
	"github.com/iliyamo/account-authority/internal/obs"
	"github.com/iliyamo/account-authority/internal/queue"
	"github.com/iliyamo/account-authority/internal/router"
	"github.com/iliyamo/account-authority/internal/service"
	"github.com/iliyamo/account-authority/internal/utils"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = log.Sync() }()

	tokens, err := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL)
	if err != nil {
		log.Fatal("token issuer", zap.Error(err))
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database connect", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal("schema migration", zap.Error(err))
		}
		log.Info("schema applied")
	}

	var roles *cache.Roles
	if rdb := config.NewRedisClient(ctx); rdb != nil {
		defer rdb.Close()
		roles = cache.NewRoles(rdb, cfg.RoleCacheTTL, logger.Component(log, "role-cache"))
		log.Info("role cache enabled")
	} else {
		log.Info("redis unavailable; role cache disabled")
	}

	var mailer service.Mailer = service.LogMailer{Log: logger.Component(log, "mailer")}
	if cfg.AMQPURL != "" {
		mailer = queue.NewPublisher(cfg.AMQPURL, cfg.EmailQueue, logger.Component(log, "publisher"))
	}

	hasher := utils.Bcrypt{Cost: cfg.BcryptCost}
	sessions := service.NewSessions(db, tokens, hasher, cfg.RefreshTTL, logger.Component(log, "sessions"))
	verifier := service.NewVerifier(db, hasher, mailer, cfg.VerificationTTL, cfg.ResetTTL, logger.Component(log, "verifier"))
	provisioner := service.NewProvisioner(db, roles, hasher, sessions, verifier, logger.Component(log, "provisioner"))
	accounts := service.NewAccounts(db, logger.Component(log, "accounts"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(obs.Instrument())
	e.Use(middleware.RequestLogger(logger.Component(log, "http")))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(provisioner, sessions, verifier, log))
	router.RegisterAccounts(e, handler.NewUserHandler(accounts, provisioner, log), tokens)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	verifier.Wait()
	log.Info("stopped")
}
