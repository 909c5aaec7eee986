package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shoppro/backend/internal/ai"
	"shoppro/backend/internal/config"
	"shoppro/backend/internal/httpapi"
	"shoppro/backend/internal/service"
	"shoppro/backend/internal/store"
	filestore "shoppro/backend/internal/store/file"
	pgstore "shoppro/backend/internal/store/postgres"
	redisstore "shoppro/backend/internal/store/redis"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var kv store.KV
	closers := make([]func() error, 0, 1)

	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with a different backend", err)
		}
		kv = pg
		closers = append(closers, pg.Close)
		log.Println("store: postgres")
	case cfg.RedisAddr != "":
		rd, err := redisstore.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis unavailable (%v) and REDIS_ADDR is set; refusing to start with a different backend", err)
		}
		kv = rd
		closers = append(closers, rd.Close)
		log.Println("store: redis")
	default:
		fs, err := filestore.Open(cfg.DataFile)
		if err != nil {
			log.Fatalf("open data file: %v", err)
		}
		kv = fs
		log.Printf("store: file (%s)", cfg.DataFile)
	}

	var assistant ai.Extractor = ai.Disabled{}
	if cfg.GeminiAPIKey != "" {
		assistant = ai.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
		log.Printf("ai assistant: %s", cfg.GeminiModel)
	} else {
		log.Println("ai assistant: disabled")
	}

	svc := service.New(kv, assistant, cfg.LowStockThreshold)
	if err := svc.Load(ctx); err != nil {
		log.Fatalf("load state: %v", err)
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, svc)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("billing backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
