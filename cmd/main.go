package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credential_service/internal/auth"
	"credential_service/internal/config"
	"credential_service/internal/delivery"
	"credential_service/internal/http_server/handlers/login"
	"credential_service/internal/http_server/handlers/logout"
	"credential_service/internal/http_server/handlers/refresh"
	"credential_service/internal/http_server/handlers/register"
	"credential_service/internal/http_server/handlers/resetconfirm"
	"credential_service/internal/http_server/handlers/resetrequest"
	"credential_service/internal/http_server/handlers/sendotp"
	"credential_service/internal/http_server/handlers/verifyotp"
	"credential_service/internal/lib/hasher"
	"credential_service/internal/lib/jwt"
	rateLimit "credential_service/internal/middleware/ratelimit"
	"credential_service/internal/ratelimit"
	"credential_service/internal/storage/postgres"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting credential service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	if err := postgres.RunMigrations(ctx, postgres.DSN(cfg)); err != nil {
		log.Error("failed to run migrations", slog.String("err", err.Error()))
		os.Exit(1)
	}

	repo, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer repo.Close()

	limiter, closeLimiter, err := setupLimiter(ctx, cfg, repo)
	if err != nil {
		log.Error("failed to setup rate limiter", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer closeLimiter()

	sender, closeSender, err := setupSender(cfg, log)
	if err != nil {
		log.Error("failed to setup otp delivery", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer closeSender()

	engine := auth.New(
		log,
		repo,
		limiter,
		jwt.NewManager(cfg.Tokens.Secret),
		hasher.New(cfg.BcryptCost),
		sender,
		auth.Config{
			AccessTokenTTL:  cfg.Tokens.AccessTokenTTL,
			RefreshTokenTTL: cfg.Tokens.RefreshTokenTTL,
			OtpTTL:          cfg.Otp.TTL,
			OtpMaxAttempts:  cfg.Otp.MaxAttempts,
			OtpSendWindow:   cfg.Otp.SendWindow,
			OtpSendMax:      cfg.Otp.SendMax,
			EchoOtp:         cfg.Env != config.EnvProduction,
		},
	)

	router := setupRouter(log, engine)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(log *slog.Logger, engine *auth.Auth) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.With(rateLimit.Register()).Post("/register",
		register.New(log, validate, engine),
	)
	r.With(rateLimit.SendOtp()).Post("/otp/send",
		sendotp.New(log, validate, engine),
	)
	r.With(rateLimit.VerifyOtp()).Post("/otp/verify",
		verifyotp.New(log, validate, engine),
	)
	r.With(rateLimit.Login()).Post("/login",
		login.New(log, validate, engine),
	)
	r.With(rateLimit.Refresh()).Post("/refresh",
		refresh.New(log, validate, engine),
	)
	r.With(rateLimit.Logout()).Post("/logout",
		logout.New(log, validate, engine),
	)
	r.With(rateLimit.PasswordReset()).Post("/password-reset/request",
		resetrequest.New(log, validate, engine),
	)
	r.With(rateLimit.PasswordReset()).Post("/password-reset/confirm",
		resetconfirm.New(log, validate, engine),
	)

	return r
}

func setupLimiter(ctx context.Context, cfg *config.Config, repo *postgres.Repo) (ratelimit.Limiter, func(), error) {
	switch cfg.RateLimit.Backend {
	case "postgres":
		return ratelimit.NewPostgres(repo.Pool()), func() {}, nil
	case "redis":
		rdb, err := ratelimit.NewRedis(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}

		return rdb, rdb.Close, nil
	default:
		return ratelimit.NewLocal(), func() {}, nil
	}
}

func setupSender(cfg *config.Config, log *slog.Logger) (delivery.Sender, func(), error) {
	switch cfg.Delivery.Backend {
	case "smtp":
		return delivery.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.Delivery.From), func() {}, nil
	case "rabbitmq":
		mq, err := delivery.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			return nil, nil, err
		}

		return mq, mq.Close, nil
	default:
		return delivery.NewConsole(log), func() {}, nil
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvDevelopment, config.EnvTest:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvProduction:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}
