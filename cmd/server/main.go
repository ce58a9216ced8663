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

	"perfumestock/backend/internal/cache"
	"perfumestock/backend/internal/config"
	"perfumestock/backend/internal/httpapi"
	"perfumestock/backend/internal/reporting"
	"perfumestock/backend/internal/service"
	"perfumestock/backend/internal/store"
	"perfumestock/backend/internal/store/memory"
	pgstore "perfumestock/backend/internal/store/postgres"
	sbstore "perfumestock/backend/internal/store/supabase"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closers, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("repository unavailable: %v", err)
	}

	cacheStore := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	reports := reporting.NewEngine(cacheStore, time.Duration(cfg.ReportCacheTTLSeconds)*time.Second)
	svc := service.New(repo, reports)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo, cfg.AllowSignup)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("PerfumeStock backend listening on %s", cfg.Address())
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

// openRepository picks Supabase, then Postgres, then the seeded in-memory
// store. A configured backend that cannot be reached is fatal.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, []func() error, error) {
	switch {
	case cfg.SupabaseURL != "":
		sb, err := sbstore.New(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, nil, err
		}
		if err := sb.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("supabase: %w", err)
		}
		log.Println("repository: supabase")
		return sb, nil, nil
	case cfg.DatabaseURL != "":
		if cfg.DBAutoMigrate {
			if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		log.Println("repository: postgres")
		return pg, []func() error{pg.Close}, nil
	default:
		log.Println("repository: in-memory (seeded demo data)")
		return memory.NewSeeded(), nil, nil
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AccessTokenTTLMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL_MINUTES must be positive")
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey == "" {
		return fmt.Errorf("SUPABASE_KEY must be set when SUPABASE_URL is set")
	}
	return nil
}
