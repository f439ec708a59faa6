package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/stagezero-42/whisper-api-service/internal/config"
	"github.com/stagezero-42/whisper-api-service/internal/httpapi"
	"github.com/stagezero-42/whisper-api-service/internal/jobs"
	"github.com/stagezero-42/whisper-api-service/internal/persistence"
	"github.com/stagezero-42/whisper-api-service/internal/service"
	"github.com/stagezero-42/whisper-api-service/internal/transcribe"
	"github.com/stagezero-42/whisper-api-service/pkg/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.LogLevel))

	store, err := persistence.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("Failed to open job store: %v", err)
	}
	defer store.Close()

	queue := jobs.NewQueue(cfg.Worker.Count, store)
	queue.SetMaxJobs(cfg.Worker.MaxJobs)

	engine := transcribe.NewCLIEngine(cfg.Model.WhisperBin)
	cache := transcribe.NewModelCache(engine)
	policy := transcribe.DevicePolicy{
		Preferred: cfg.Model.PreferredDevice,
		Fallback:  cfg.Model.FallbackDevice,
	}
	adapter := transcribe.NewAdapter(cache, policy, cfg.Model.DefaultModel)

	queue.Start(service.NewExecutor(adapter))
	defer queue.Stop()

	if cfg.Model.PreloadModel != "" {
		go func() {
			if err := adapter.Preload(context.Background(), cfg.Model.PreloadModel); err != nil {
				log.Warn("Model preload failed: %v", err)
			} else {
				log.Info("Preloaded model %q", cfg.Model.PreloadModel)
			}
		}()
	}

	janitor := service.NewJanitor(
		cfg.Storage.UploadDir,
		time.Duration(cfg.Cleanup.UploadTTLHours)*time.Hour,
		queue,
	)
	scheduler := cron.New()
	if err := janitor.Schedule(scheduler, cfg.Cleanup.CronExpr); err != nil {
		log.Fatal("Invalid cleanup schedule %q: %v", cfg.Cleanup.CronExpr, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := httpapi.NewServer(cfg, queue)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP shutdown: %v", err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed: %v", err)
		}
	}
}
