// Command hemocore-server serves the blood supply coordination core over
// HTTP, wiring the configured persistence backend, Prometheus metrics, and
// optional Kafka lifecycle eventing.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hemocore/internal/config"
	"hemocore/internal/core"
	"hemocore/internal/events"
	"hemocore/internal/httpapi"
	"hemocore/internal/infra/persistence/memory"
	"hemocore/internal/infra/persistence/postgres"
	"hemocore/internal/infra/persistence/sqlite"
	"hemocore/pkg/domain"
)

func main() {
	cfg := config.Load()

	store, closer, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.Store, err)
	}
	if closer != nil {
		defer func() {
			if err := closer(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()
	}

	svc := core.NewService(store,
		core.WithMetrics(core.NewPrometheusMetricsRecorder(nil)),
		core.WithTracer(core.NewJSONTracer(os.Stderr)),
	)

	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Printf("close publisher: %v", err)
			}
		}()
		log.Printf("publishing lifecycle events to %v", cfg.KafkaBrokers)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	httpapi.New(svc, publisher).Routes(r)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("hemocore-server listening on %s (store=%s)", cfg.Addr, cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func openStore(cfg *config.Config) (domain.PersistentStore, func() error, error) {
	engine := core.NewDefaultRulesEngine()
	switch cfg.Store {
	case "memory":
		return memory.NewStore(engine), nil, nil
	case "sqlite":
		store, err := sqlite.NewStore(cfg.DBPath, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "postgres":
		store, err := postgres.NewStore(cfg.PostgresDSN, engine)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (expected memory, sqlite, or postgres)", cfg.Store)
	}
}
