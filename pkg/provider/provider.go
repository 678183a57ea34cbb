// Package provider wires the registry, engine, lock, migration
// coordinator, and RPC fabric into a single running process — the
// provider of spec §1: "a process exposing one or more named databases".
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"

	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/engine"
	"github.com/kvfabric/kvfabric/pkg/filemover"
	"github.com/kvfabric/kvfabric/pkg/health"
	"github.com/kvfabric/kvfabric/pkg/lock"
	"github.com/kvfabric/kvfabric/pkg/log"
	"github.com/kvfabric/kvfabric/pkg/metrics"
	"github.com/kvfabric/kvfabric/pkg/migration"
	"github.com/kvfabric/kvfabric/pkg/registry"
	"github.com/kvfabric/kvfabric/pkg/transport"
	"github.com/kvfabric/kvfabric/pkg/types"
)

// Provider is one running instance of spec §1: a registry of attached
// databases reachable over the grpc fabric, plus the ambient metrics and
// health surfaces a production deployment needs.
type Provider struct {
	cfg         types.ProviderConfig
	comparators *comparator.Registry
	registry    *registry.Registry
	lock        *lock.ProviderLock
	engine      *engine.Engine
	migration   *migration.Coordinator
	collector   *metrics.Collector
	health      *health.Checker

	grpcServer    *grpc.Server
	metricsServer *http.Server
	healthServer  *http.Server

	shutdownOnce sync.Once
}

// New builds a Provider from cfg. comparators must already carry any
// named comparators the provider's databases reference — registration
// happens before New, the same ordering spec §3 requires.
func New(cfg types.ProviderConfig, comparators *comparator.Registry) *Provider {
	reg := registry.New(comparators)
	lk := lock.New()
	eng := engine.New(reg, lk)
	coord := migration.New(eng, filemover.NewLocal())

	p := &Provider{
		cfg:         cfg,
		comparators: comparators,
		registry:    reg,
		lock:        lk,
		engine:      eng,
		migration:   coord,
		collector:   metrics.NewCollector(eng),
		health:      health.NewChecker("registry", "transport"),
	}
	p.health.Set("registry", true, "")
	return p
}

// Engine returns the provider's request engine, for callers (kv-provider's
// bootstrap path) that need to attach databases from a manifest before
// Serve starts accepting RPCs.
func (p *Provider) Engine() *engine.Engine { return p.engine }

// Migration returns the provider's migration coordinator.
func (p *Provider) Migration() *migration.Coordinator { return p.migration }

// handlerPoolInterceptor bounds concurrent Invoke execution to
// cfg.HandlerPoolSize (spec §5's handler pool), so a burst of concurrent
// RPCs queues at the interceptor rather than spawning unbounded backend
// work.
func handlerPoolInterceptor(poolSize int) grpc.UnaryServerInterceptor {
	sem := semaphore.NewWeighted(int64(poolSize))
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer sem.Release(1)
		return handler(ctx, req)
	}
}

// Serve starts the grpc fabric and the metrics/health HTTP servers. It
// blocks until ctx is canceled or Shutdown is called, then stops every
// listener and returns the first error encountered, if any.
func (p *Provider) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", p.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("provider: listen %s: %w", p.cfg.BindAddr, err)
	}

	poolSize := p.cfg.HandlerPoolSize
	if poolSize <= 0 {
		poolSize = types.DefaultProviderConfig().HandlerPoolSize
	}
	p.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(handlerPoolInterceptor(poolSize)))
	srv := transport.NewServer(p.engine, p.comparators, p.migration, func() { p.Shutdown(context.Background()) })
	srv.SetProviderID(p.cfg.ProviderID)
	transport.RegisterKVServer(p.grpcServer, srv)
	p.health.Set("transport", true, "")

	p.collector.Start()

	errCh := make(chan error, 3)
	go func() {
		log.Info(fmt.Sprintf("provider listening on %s", p.cfg.BindAddr))
		if err := p.grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("provider: grpc serve: %w", err)
			return
		}
		// grpc's Serve returns nil only after Stop/GracefulStop, i.e. once
		// Shutdown has run; signal that so Serve below returns too.
		errCh <- nil
	}()

	if p.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		p.metricsServer = &http.Server{Addr: p.cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := p.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("provider: metrics serve: %w", err)
			}
		}()
	}

	if p.cfg.HealthAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", p.health.HealthHandler())
		mux.HandleFunc("/ready", p.health.ReadyHandler())
		mux.HandleFunc("/live", p.health.LivenessHandler())
		p.healthServer = &http.Server{Addr: p.cfg.HealthAddr, Handler: mux}
		go func() {
			if err := p.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("provider: health serve: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return p.shutdownServers()
	case err := <-errCh:
		_ = p.shutdownServers()
		return err
	}
}

// Shutdown stops the provider gracefully: grpc fabric, HTTP servers, and
// finally closes every attached database. Safe to call from the
// privileged shutdown RPC handler (spec §5), which invokes it
// asynchronously to avoid deadlocking inside its own Invoke call.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.shutdownServers(); err != nil {
		return err
	}
	_, err := p.engine.RemoveAll()
	return err
}

// shutdownServers is idempotent: an OpShutdown RPC and a canceled Serve
// context can both reach it for the same Provider, and the collector's
// stop channel must only ever be closed once.
func (p *Provider) shutdownServers() error {
	p.shutdownOnce.Do(func() {
		p.collector.Stop()
		if p.grpcServer != nil {
			p.grpcServer.GracefulStop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if p.metricsServer != nil {
			_ = p.metricsServer.Shutdown(shutdownCtx)
		}
		if p.healthServer != nil {
			_ = p.healthServer.Shutdown(shutdownCtx)
		}
	})
	return nil
}
