/*
Copyright 2024 The Aibrix Team.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/amdinfer/inferd/pkg/config"
	"github.com/amdinfer/inferd/pkg/endpoints"
	"github.com/amdinfer/inferd/pkg/events"
	"github.com/amdinfer/inferd/pkg/history"
	"github.com/amdinfer/inferd/pkg/logging"
	"github.com/amdinfer/inferd/pkg/memorypool"
	"github.com/amdinfer/inferd/pkg/memorypool/allocators"
	"github.com/amdinfer/inferd/pkg/metrics"
	"github.com/amdinfer/inferd/pkg/repository"
	"github.com/amdinfer/inferd/pkg/repository/k8swatch"
	"github.com/amdinfer/inferd/pkg/server"
	"github.com/amdinfer/inferd/pkg/server/httpadmin"
	"github.com/amdinfer/inferd/pkg/types"
	"github.com/amdinfer/inferd/pkg/worker"

	_ "github.com/amdinfer/inferd/pkg/workers/echo"
)

var buildVersion = "dev"

func main() {
	configFile := flag.String("config", "", "path to a YAML or TOML config file")
	logLevel := flag.String("log-level", "INFO", "DEBUG, INFO, WARN, ERROR, FATAL, DISABLED")
	pretty := flag.Bool("pretty", false, "console-writer log output for local runs")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("inferd: failed to load config: %v", err)
	}

	logger := logging.New(logging.Options{AppName: "inferd", Level: *logLevel, Pretty: *pretty})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("inferd: exiting")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	pool := memorypool.NewPool()
	pool.Register(allocators.NewCpu(types.AllocatorCpu))
	pool.Register(allocators.NewCpu(types.AllocatorCpuPinned))

	var publisher *events.Publisher
	var err error
	if cfg.EventsKafkaBrokers != "" {
		publisher, err = events.NewPublisher(cfg.EventsKafkaBrokers, cfg.EventsKafkaTopic, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("inferd: event publisher disabled")
		} else {
			defer publisher.Close(2000)
		}
	}

	reg := endpoints.New(worker.DefaultKinds, pool, logger).
		WithLease(endpoints.NewLease(cfg.HARedisAddr, 10*time.Second)).
		WithEvents(publisher)
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn().Err(err).Msg("inferd: endpoints close failed")
		}
	}()

	defaultParams := types.ParameterMap{
		"batch_size":    types.IntParameter(int64(cfg.BatchDefaultSize)),
		"batch_timeout": types.StringParameter(cfg.BatchDefaultTimeout.String()),
	}

	cache, err := repository.OpenDescriptorCache("")
	if err != nil {
		return fmt.Errorf("inferd: descriptor cache: %w", err)
	}
	defer cache.Close()

	resolver := repository.Resolver{Path: cfg.RepositoryPath, Cache: cache, Defaults: defaultParams}

	var historySink *history.Sink
	if len(cfg.AuditCassandraHosts) > 0 {
		historySink, err = history.NewSink(cfg.AuditCassandraHosts, cfg.AuditCassandraKeyspace, 1024, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("inferd: history sink disabled")
		} else {
			defer historySink.Close()
		}
	}

	var statsdSink *metrics.StatsdSink
	if cfg.MetricsStatsdAddr != "" {
		statsdSink, err = metrics.NewStatsdSink(cfg.MetricsStatsdAddr, nil, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("inferd: statsd sink disabled")
		} else {
			defer statsdSink.Close()
		}
	}
	collectors := metrics.NewCollectors(prometheus.DefaultRegisterer)
	reg.WithMetrics(collectors, statsdSink)

	snapshot := server.Snapshot{Name: "inferd", Version: buildVersion, Extensions: []string{"model_repository"}}
	state := server.New(snapshot, reg, resolver, logger).
		WithDedup(server.NewDedup(cfg.HARedisAddr, time.Minute)).
		WithHistory(historySink).
		WithMetrics(collectors, statsdSink)
	defer func() {
		if err := state.Close(); err != nil {
			logger.Warn().Err(err).Msg("inferd: server close failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := repository.NewWatcher(cfg.RepositoryPath, cfg.RepositoryPoll, cfg.RepositorySettle, state, cache, logger).
		WithDefaults(defaultParams)
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("inferd: repository watcher stopped")
		}
	}()

	if cfg.K8sRepositoryEnabled {
		if err := runK8sWatch(ctx, cfg, state, logger); err != nil {
			logger.Warn().Err(err).Msg("inferd: kubernetes model source disabled")
		}
	}

	grpcErrs := make(chan error, 1)
	go func() { grpcErrs <- serveGRPC(ctx, cfg.GRPCAddr, logger) }()

	adminErrs := make(chan error, 1)
	go func() { adminErrs <- serveAdmin(ctx, cfg.AdminAddr, state, logger) }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("inferd: shutting down")
		return nil
	case err := <-grpcErrs:
		return err
	case err := <-adminErrs:
		return err
	}
}

// serveAdmin listens on addr and uses cmux to split the admin control
// plane from the Prometheus scrape endpoint on the same port, the way
// a single exposed port carries both gRPC and HTTP1 traffic elsewhere
// in the stack.
func serveAdmin(ctx context.Context, addr string, state *server.SharedState, logger zerolog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("inferd: admin listen: %w", err)
	}

	m := cmux.New(lis)
	metricsLis := m.Match(metricsPathMatcher())
	adminLis := m.Match(cmux.Any())

	go func() {
		srv := &http.Server{Handler: promhttp.Handler()}
		if err := srv.Serve(metricsLis); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("inferd: metrics listener stopped")
		}
	}()
	go func() {
		srv := &http.Server{Handler: httpadmin.Router(state, logger)}
		if err := srv.Serve(adminLis); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("inferd: admin listener stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		_ = lis.Close()
	}()

	logger.Info().Str("addr", addr).Msg("inferd: admin and metrics listening")
	if err := m.Serve(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// metricsPathMatcher peeks the HTTP request line without consuming it
// from the underlying connection, routing /metrics to promhttp and
// everything else to the admin router.
func metricsPathMatcher() cmux.Matcher {
	return func(r io.Reader) bool {
		req, err := http.ReadRequest(bufio.NewReader(r))
		if err != nil {
			return false
		}
		return req.URL.Path == "/metrics"
	}
}

// serveGRPC runs the gRPC health-check surface orchestrators probe for
// liveness.
func serveGRPC(ctx context.Context, addr string, logger zerolog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("inferd: grpc listen: %w", err)
	}

	srv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	logger.Info().Str("addr", addr).Msg("inferd: grpc health listening")
	return srv.Serve(lis)
}

// runK8sWatch starts a controller-runtime manager that treats labeled
// ConfigMaps as model descriptors, an alternative to the filesystem
// Watcher for clusters that apply model descriptors as Kubernetes
// objects. It blocks until ctx is cancelled.
func runK8sWatch(ctx context.Context, cfg config.Config, loader repository.Loader, logger zerolog.Logger) error {
	scheme, err := k8swatch.Scheme()
	if err != nil {
		return err
	}

	restCfg := ctrl.GetConfigOrDie()
	if cfg.K8sNamespace != "" {
		if err := k8swatch.VerifyNamespace(restCfg, cfg.K8sNamespace); err != nil {
			return err
		}
	}

	mgr, err := ctrl.NewManager(restCfg, ctrl.Options{Scheme: scheme})
	if err != nil {
		return fmt.Errorf("inferd: kubernetes manager: %w", err)
	}

	reconciler := &k8swatch.Reconciler{Client: mgr.GetClient(), Loader: loader, Namespace: cfg.K8sNamespace}
	if err := reconciler.SetupWithManager(mgr); err != nil {
		return fmt.Errorf("inferd: kubernetes reconciler setup: %w", err)
	}

	go func() {
		if err := mgr.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("inferd: kubernetes manager exited")
		}
	}()
	return nil
}
