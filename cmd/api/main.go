package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/oncodose/treatment-api/internal/config"
	authhandler "github.com/oncodose/treatment-api/internal/handler/auth"
	oncologisthandler "github.com/oncodose/treatment-api/internal/handler/oncologist"
	patienthandler "github.com/oncodose/treatment-api/internal/handler/patient"
	simulationhandler "github.com/oncodose/treatment-api/internal/handler/simulation"
	"github.com/oncodose/treatment-api/internal/repository/sqlite"
	"github.com/oncodose/treatment-api/internal/router"
	oncologistservice "github.com/oncodose/treatment-api/internal/service/oncologist"
	patientservice "github.com/oncodose/treatment-api/internal/service/patient"
	"github.com/oncodose/treatment-api/internal/service/session"
	"github.com/oncodose/treatment-api/internal/simulation"
	"github.com/oncodose/treatment-api/pkg/auth"
	"github.com/oncodose/treatment-api/pkg/logger"
	"github.com/oncodose/treatment-api/pkg/metrics"
	"github.com/oncodose/treatment-api/pkg/security"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal(err, "failed to open database")
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New("oncodose")
	appMetrics.Register(registry)

	codec := security.NewFieldCodec()
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	oncologistRepo := sqlite.NewOncologistRepository(db)
	patientRepo := sqlite.NewPatientRepository(db, codec)

	oncologists := oncologistservice.NewService(oncologistRepo, hasher, log)
	patients := patientservice.NewService(patientRepo, log)

	engine := simulation.NewControllerEngine(cfg.Engine.Command, cfg.Engine.Args)
	orchestrator := simulation.NewOrchestrator(engine, cfg.Engine.Timeout(), log, appMetrics)

	sessions := session.NewService(oncologists, patients, orchestrator, jwtService, log)

	r := router.New(
		log,
		jwtService,
		sessions,
		authhandler.NewHandler(sessions),
		patienthandler.NewHandler(sessions),
		oncologisthandler.NewHandler(oncologists),
		simulationhandler.NewHandler(sessions),
		registry,
		cfg.RateLimit.RPS,
		cfg.RateLimit.Burst,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	orchestrator.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "forced shutdown")
	}
}
