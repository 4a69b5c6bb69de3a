package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/zolachat/zola-api/internal/config"
	"github.com/zolachat/zola-api/internal/handler"
	"github.com/zolachat/zola-api/internal/otp"
	"github.com/zolachat/zola-api/internal/repository"
	"github.com/zolachat/zola-api/internal/usecase"
	"github.com/zolachat/zola-api/shared/auth"
	"github.com/zolachat/zola-api/shared/mailer"
	"github.com/zolachat/zola-api/shared/provider"
	"github.com/zolachat/zola-api/shared/storage"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := config.Load(&logger)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from mongodb")
		}
	}()

	if err := client.Ping(ctx, nil); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mongodb")
	}

	db := client.Database(cfg.Mongo.Database)

	accountRepo := repository.NewAccountMongoRepository(ctx, &logger, db)
	registerOTPStore := repository.NewOTPRequestMongoRepository(ctx, &logger, db)
	postRepo := repository.NewPostMongoRepository(ctx, &logger, db)
	commentRepo := repository.NewCommentMongoRepository(ctx, &logger, db)

	resetEngine := otp.NewEngine(&repository.AccountOTPStore{Accounts: accountRepo}, otp.Policy{
		ExpiryWindow:      cfg.OTP.ResetExpiry,
		MaxSendAttempts:   cfg.OTP.MaxSendAttempts,
		MaxVerifyAttempts: cfg.OTP.MaxVerifyAttempts,
		SendCooldown:      cfg.OTP.SendCooldown,
	})
	registerEngine := otp.NewEngine(registerOTPStore, otp.Policy{
		ExpiryWindow:      cfg.OTP.RegisterExpiry,
		MaxSendAttempts:   cfg.OTP.MaxSendAttempts,
		MaxVerifyAttempts: cfg.OTP.MaxVerifyAttempts,
		SendCooldown:      cfg.OTP.SendCooldown,
	})

	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Secret, cfg.Token.Issuer, cfg.Token.ExpiresIn)
	m := mailer.NewMailer(&logger)
	googleProvider := provider.NewGoogleOAuthProvider(cfg.Google.ClientID)

	mediaStorage, err := storage.NewS3Storage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	authUsecase := usecase.NewAuthUsecase(
		accountRepo,
		resetEngine,
		registerEngine,
		jwtAuth,
		m,
		googleProvider,
		cfg.OTP.ResetExpiry,
		cfg.OTP.RegisterExpiry,
		cfg.OTP.MaxSendAttempts,
	)
	postUsecase := usecase.NewPostUsecase(postRepo, accountRepo, mediaStorage, &logger)
	commentUsecase := usecase.NewCommentUsecase(commentRepo, postRepo, accountRepo)
	profileUsecase := usecase.NewProfileUsecase(accountRepo)

	router := handler.NewRouter(
		&logger,
		jwtAuth,
		cfg.Server.CORSOrigin,
		authUsecase,
		postUsecase,
		commentUsecase,
		profileUsecase,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
