package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "evoting/docs"
	"evoting/internal/config"
	"evoting/internal/domain/meeting"
	"evoting/internal/domain/registry"
	"evoting/internal/domain/voting"
	api "evoting/internal/http"
	"evoting/internal/metrics"
	"evoting/internal/platform/database"
	jwtpkg "evoting/internal/platform/jwt"
	"evoting/internal/repository/postgres"
	"evoting/internal/worker"
)

// @title           Shareholder Meeting Voting API
// @version         1.0
// @description     Electronic voting for shareholder meetings
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	cfg := config.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	metrics.Register()

	db, err := database.NewPostgres(cfg.DB_DSN)
	if err != nil {
		log.Error("db connect error", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	meetingRepo := postgres.NewMeetingRepo(db)
	registryRepo := postgres.NewRegistryRepo(db)
	voteRepo := postgres.NewVoteRepo(db)

	meetingSvc := meeting.NewService(meetingRepo)
	registrySvc := registry.NewService(registryRepo)
	votingSvc := voting.NewService(voteRepo, registrySvc, meetingSvc)

	jwtMgr := jwtpkg.NewManager(cfg.JWTSecret, cfg.JWTIssuer)

	ballotCh := make(chan worker.BallotEvent, 100)
	auditWorker := worker.NewAuditWorker(ballotCh, log)

	router := api.NewRouter(meetingSvc, registrySvc, votingSvc, jwtMgr, ballotCh, db)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go auditWorker.Run(ctx)

	go func() {
		log.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	<-stop
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "err", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
