package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kobukuro/fcsvault/internal/audit"
	"github.com/kobukuro/fcsvault/internal/auth"
	"github.com/kobukuro/fcsvault/internal/config"
	"github.com/kobukuro/fcsvault/internal/httpapi"
	"github.com/kobukuro/fcsvault/internal/obs"
	"github.com/kobukuro/fcsvault/internal/pat"
	"github.com/kobukuro/fcsvault/internal/storage"
	"github.com/kobukuro/fcsvault/internal/upload"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()
	if cfg.DatabaseDSN == "" {
		log.Fatal("FCSVAULT_PG_DSN is required")
	}
	if cfg.SessionSecret == "" {
		log.Fatal("FCSVAULT_SESSION_SECRET is required")
	}

	db := openDB(cfg.DatabaseDSN, 10)
	defer db.Close()

	// Audit gets its own pool so the primary one cannot starve it and a
	// broken audit path cannot stall requests.
	auditDB := openDB(cfg.DatabaseDSN, 2)
	defer auditDB.Close()

	backend := openBackend(cfg)

	patStore := pat.NewPGStore(db)
	scopes, err := patStore.Scopes(context.Background()).All(context.Background())
	if err != nil {
		log.Fatalf("load scope table: %v", err)
	}
	hierarchy, err := pat.NewHierarchy(scopes)
	if err != nil {
		log.Fatalf("scope hierarchy: %v", err)
	}
	engine := pat.NewEngine(patStore, hierarchy)
	patSvc := pat.NewService(patStore, hierarchy)

	sessions := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)
	authSvc := auth.NewService(auth.NewPGUserStore(db), sessions)

	recorder := audit.NewRecorder(audit.NewPGStore(auditDB))
	defer recorder.Close()

	tasks := upload.NewPGTaskStore(db)
	artifacts := upload.NewPGArtifactStore(db)
	finalizer := upload.NewFinalizer(tasks, artifacts, backend, cfg.FinalizerWorkers)
	defer finalizer.Close()
	coordinator := upload.NewCoordinator(tasks, backend, cfg.MaxUploadBytes, finalizer.Enqueue)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go upload.NewSweeper(tasks, backend, finalizer, cfg.UploadSessionTTL).Run(sweepCtx)

	api := httpapi.New(httpapi.Deps{
		ReadyProbe:    httpapi.ReadyProbe{DB: db},
		Version:       version,
		Auth:          authSvc,
		Sessions:      sessions,
		Engine:        engine,
		Tokens:        patSvc,
		Recorder:      recorder,
		Coordinator:   coordinator,
		Artifacts:     artifacts,
		Backend:       backend,
		MaxBodyBytes:  cfg.MaxUploadBytes,
		RatePerSecond: cfg.RateLimitPerSec,
		RateBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       5 * time.Minute, // chunk bodies can be large
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting fcsvault-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

func openDB(dsn string, maxConns int) *sql.DB {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db
}

func openBackend(cfg *config.Config) storage.Backend {
	switch cfg.StorageBackend {
	case "s3":
		backend, err := storage.NewS3(context.Background(), storage.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		}, cfg.StorageBasePath)
		if err != nil {
			log.Fatalf("s3 backend: %v", err)
		}
		return backend
	default:
		backend, err := storage.NewLocal(cfg.StorageBasePath)
		if err != nil {
			log.Fatalf("local backend: %v", err)
		}
		return backend
	}
}
