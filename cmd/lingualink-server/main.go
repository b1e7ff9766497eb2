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

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/audionorm"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/backend"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/bootstrap"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/credcache"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/credential"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/dispatcher"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/httpserver"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/operator"
)

func main() {
	logger := log.New(os.Stdout, "lingualink-server ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if len(cfg.Backends) == 0 {
		bootstrapped, err := bootstrap.LoadBackends(cfg.BootstrapFile)
		if err != nil {
			logger.Fatalf("bootstrap: %v", err)
		}
		cfg.Backends = bootstrapped
	}
	if len(cfg.Backends) == 0 && cfg.BackendURL == "" {
		logger.Fatalf("config: no backends configured")
	}

	credentials, err := credential.Open(cfg.CredentialDBPath)
	if err != nil {
		logger.Fatalf("credential store: %v", err)
	}
	defer credentials.Close()

	var auth interface {
		Verify(ctx context.Context, secret string) (credential.Credential, error)
	} = credentials
	if cfg.CacheEnabled {
		cache, err := credcache.New(context.Background(), cfg.RedisURL, cfg.CacheTTL, credentials)
		if err != nil {
			logger.Fatalf("credential cache: %v", err)
		}
		if !cache.Enabled() {
			logger.Printf("credential cache: redis unavailable at startup, degrading to direct store lookups")
		}
		defer cache.Close()
		auth = cache
	}

	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		logger.Fatalf("temp dir: %v", err)
	}
	normalizer := audionorm.New(audionorm.Config{
		FFmpegPath:        cfg.FFmpegPath,
		TempDir:           cfg.TempDir,
		Slots:             cfg.NormalizerSlots,
		Workers:           cfg.NormalizerWorkers,
		AllowedExtensions: cfg.AllowedExtensions,
	})
	defer normalizer.Close()

	registry := backend.NewRegistry(cfg.EffectiveBackends())
	selector := backend.NewSelector(registry, backend.Strategy(cfg.SelectionStrategy))
	prober := backend.NewProber(registry, cfg.HealthCheckInterval, cfg.FailureThreshold)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	prober.Start(ctx)
	defer prober.Stop()

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := credentials.CleanupExpired(ctx); err != nil {
					logger.Printf("credential cleanup: %v", err)
				} else if n > 0 {
					logger.Printf("credential cleanup: deactivated %d expired credential(s)", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	dispatch := dispatcher.New(registry, selector, cfg.MaxRetries, cfg.DefaultUserPrompt, cfg.MaxTokens, cfg.Temperature)
	op := operator.New(credentials, registry, selector, prober)

	srv := httpserver.New(cfg, credentials, auth, normalizer, dispatch, op, logger)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Printf("shutting down...")
	_ = httpSrv.Close()
}
