package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"filmclub/cmd/buildCFG"
	"filmclub/internal/api/api"
	"filmclub/internal/auth"
	rabbitReader "filmclub/internal/consumerWorker"
	"filmclub/internal/mailer"
	"filmclub/internal/rabbit"
	"filmclub/internal/repo"
	"filmclub/internal/service"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", ""); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}

	secrets, err := buildCFG.LoadSecrets(".env", &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load secrets")
	}
	for name, set := range secrets.Presence() {
		if !set {
			log.Warn().Str("var", name).Msg("environment variable not set")
		}
	}

	serverCfg := buildCFG.BuildServerConfig(cfg, &log)
	appCfg := buildCFG.BuildAppConfig(cfg, secrets)

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, secrets, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	if err := db.Master.Ping(); err != nil {
		log.Fatal().Msgf("DB ping failed: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	repository, err := repo.NewRepository(db, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	if err := repository.MigrateUp(appCfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, secrets, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}

	var (
		publisher rabbit.Publisher
		rmq       *rabbit.Client
	)
	if rabbitCfg.Enabled {
		rmq, err = rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue)
		if err != nil {
			log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rmq.Close()
		publisher = rmq
	}

	sender := mailer.NewSMTPSender(buildCFG.BuildSMTPConfig(cfg, secrets), &log)
	notifier := service.NewNotifier(repository, publisher, sender, &log, service.NotifierConfig{
		SiteURL:        appCfg.SiteURL,
		ReminderBefore: appCfg.ReminderBefore,
		FollowupAfter:  appCfg.FollowupAfter,
	})

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var reader *rabbitReader.Reader
	if rmq != nil {
		reader = rabbitReader.NewReader(rmq, notifier)
		reader.Start(workerCtx)
	}

	serviceInstance := service.NewService(repository, &log, notifier, service.Options{
		DefaultCapacity: appCfg.DefaultCapacity,
		AllowAnonymous:  appCfg.AllowAnonymous,
		EnvReport:       secrets.Presence(),
	})
	app := api.NewRouters(&api.Routers{
		Service:        serviceInstance,
		Verifier:       auth.NewVerifier(secrets.JWTSecret, appCfg.JWTAudience),
		AdminToken:     secrets.AdminToken,
		AllowedOrigins: appCfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + serverCfg.Port,
		Handler:      app,
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Msgf("Error shutting down server: %v", err)
	}

	cancelWorkers()
	if reader != nil {
		reader.Stop()
	}

	log.Info().Msg("Shutdown complete")
}
