package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fxoption/internal/fxoption/application"
	"github.com/wyfcoding/fxoption/internal/fxoption/domain"
	fxgrpc "github.com/wyfcoding/fxoption/internal/fxoption/interfaces/grpc"
	fxhttp "github.com/wyfcoding/fxoption/internal/fxoption/interfaces/http"
	"github.com/wyfcoding/fxoption/pkg/config"
	"github.com/wyfcoding/fxoption/pkg/logger"
	"github.com/wyfcoding/fxoption/pkg/metrics"
	"github.com/wyfcoding/fxoption/pkg/middleware"
	"github.com/wyfcoding/fxoption/pkg/ratelimit"
	pkgconfig "github.com/wyfcoding/pkg/config"
	pkgmw "github.com/wyfcoding/pkg/middleware"
	"github.com/wyfcoding/pkg/tracing"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/fxoption/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}

	// 2. Logger
	cfg.Logger.Module = "main"
	if err := logger.Init(cfg.Logger); err != nil {
		slog.Error("init logger failed", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()
	logger.Info(ctx, "config loaded",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)
	pkgconfig.PrintWithMask(cfg)

	// 3. Tracing & Metrics
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(cfg.Tracing)
		if err != nil {
			logger.Fatal(ctx, "init tracer failed", "error", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error(ctx, "tracer shutdown failed", "error", err)
			}
		}()
	}

	m := metrics.New(cfg.ServiceName)
	collector := metrics.NewDefaultMetricsCollector(m)

	// 4. Application
	appService := application.NewFXOptionService(application.Defaults{
		Market: application.MarketDefaults{
			Spot:         cfg.Market.Spot,
			Future:       cfg.Market.Future,
			Volatility:   cfg.Market.Volatility,
			DomesticRate: cfg.Market.DomesticRate,
			ForeignRate:  cfg.Market.ForeignRate,
			DaysToExpiry: cfg.Market.DaysToExpiry,
		},
		Grid: domain.StrikeGrid{
			LowerOffset: cfg.Chain.LowerOffset,
			UpperOffset: cfg.Chain.UpperOffset,
			Step:        cfg.Chain.Step,
		},
		MaxChainRows: cfg.Chain.MaxRows,
	}, collector)

	limiter := ratelimit.NewLocalRateLimiter()
	limit := ratelimit.PerSecond(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// 5. Interfaces
	// gRPC
	unary := []grpc.UnaryServerInterceptor{
		middleware.GRPCRecoveryInterceptor(),
		middleware.GRPCLoggingInterceptor(),
		pkgmw.GrpcMetricsInterceptor(m.Metrics),
	}
	stream := []grpc.StreamServerInterceptor{
		middleware.GRPCStreamRecoveryInterceptor(),
		middleware.GRPCStreamLoggingInterceptor(),
		middleware.GRPCStreamMetricsInterceptor(m.Metrics),
	}
	if cfg.RateLimit.Enabled {
		unary = append(unary, middleware.GRPCRateLimitInterceptor(limiter, limit))
		stream = append(stream, middleware.GRPCStreamRateLimitInterceptor(limiter, limit))
	}
	grpcOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}
	if cfg.Tracing.Enabled {
		grpcOpts = append(grpcOpts, pkgmw.GrpcTracingServerOption())
	}
	if cfg.GRPC.MaxConcurrentStreams > 0 {
		grpcOpts = append(grpcOpts, grpc.MaxConcurrentStreams(uint32(cfg.GRPC.MaxConcurrentStreams)))
	}
	grpcSrv := grpc.NewServer(grpcOpts...)
	fxgrpc.NewServer(grpcSrv, appService)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(fxgrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	if cfg.GRPC.Reflection {
		reflection.Register(grpcSrv)
	}

	// HTTP
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if cfg.Tracing.Enabled {
		r.Use(pkgmw.TracingMiddleware(cfg.Tracing.ServiceName))
	}
	r.Use(
		middleware.GinRequestIDMiddleware(),
		middleware.GinLoggingMiddleware(),
		middleware.GinRecoveryMiddleware(),
		middleware.GinCORSMiddleware(cfg.HTTP.AllowOrigins),
		pkgmw.HttpMetricsMiddleware(m.Metrics),
	)
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	api := r.Group("")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.GinRateLimitMiddleware(limiter, limit))
	}
	fxhttp.NewFXOptionHandler(appService).RegisterRoutes(api)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 6. Start
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr())
		if err != nil {
			return err
		}
		logger.Info(gctx, "gRPC server starting", "addr", cfg.GRPC.Addr())
		return grpcSrv.Serve(lis)
	})

	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.RateLimit.Enabled {
		g.Go(func() error {
			limiter.Run(gctx, time.Minute, 10*time.Minute)
			return nil
		})
	}

	// 7. Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "shutting down servers...")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
		grpcSrv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "server exited")
}
