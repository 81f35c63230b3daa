// Package grpcclient 提供 gRPC 客户端工厂，支持 keepalive、重试、熔断、请求超时与 trace 透传
package grpcclient

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/fxoption/pkg/logger"
	"github.com/wyfcoding/pkg/breaker"
	pkgconfig "github.com/wyfcoding/pkg/config"
	pkgmetrics "github.com/wyfcoding/pkg/metrics"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ClientConfig gRPC 客户端配置
type ClientConfig struct {
	// 目标地址
	Target string
	// 连接超时
	ConnTimeout time.Duration
	// 单次请求超时
	RequestTimeout time.Duration
	// 最大重试次数
	MaxRetries int
	// 重试间隔
	RetryDelay time.Duration
	// Keepalive 间隔，0 表示关闭
	KeepaliveInterval time.Duration
	// 熔断配置，Enabled 为 false 时熔断器永不打开
	CircuitBreaker pkgconfig.CircuitBreakerConfig
	// 熔断状态指标注册到此处，为 nil 时使用独立 registry。
	// 同一个 Metrics 只能用于一个客户端。
	Metrics *pkgmetrics.Metrics
	// 附加拨号选项（例如测试中的 bufconn dialer）
	DialOptions []grpc.DialOption
}

// DefaultClientConfig 返回常用默认值
func DefaultClientConfig(target string) ClientConfig {
	return ClientConfig{
		Target:         target,
		ConnTimeout:    5 * time.Second,
		RequestTimeout: 10 * time.Second,
		MaxRetries:     2,
		RetryDelay:     200 * time.Millisecond,
		CircuitBreaker: pkgconfig.CircuitBreakerConfig{
			Enabled:     true,
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
		},
	}
}

// NewClient 创建 gRPC 客户端连接，连接是惰性的，首次调用时建立
func NewClient(cfg ClientConfig) (*grpc.ClientConn, error) {
	if cfg.Target == "" {
		return nil, errors.New("grpc target is required")
	}

	m := cfg.Metrics
	if m == nil {
		m = pkgmetrics.NewMetrics("fxoption-client")
	}
	cb := breaker.NewBreaker(breaker.Settings{Name: cfg.Target, Config: cfg.CircuitBreaker}, m)

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(
			traceClientInterceptor(),
			unaryClientInterceptor(cfg),
			breakerClientInterceptor(cb),
		),
	}

	if cfg.ConnTimeout > 0 {
		opts = append(opts, grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  100 * time.Millisecond,
				MaxDelay:   cfg.ConnTimeout,
				Multiplier: 1.6,
				Jitter:     0.2,
			},
			MinConnectTimeout: cfg.ConnTimeout,
		}))
	}

	if cfg.KeepaliveInterval > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveInterval,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}))
	}

	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Target, opts...)
	if err != nil {
		logger.Error(context.Background(), "Failed to create gRPC client", "target", cfg.Target, "error", err)
		return nil, err
	}

	logger.Debug(context.Background(), "gRPC client created", "target", cfg.Target)
	return conn, nil
}

// traceClientInterceptor 把 context 中的 trace_id / request_id 写入 outgoing metadata
func traceClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if traceID := logger.TraceID(ctx); traceID != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, "x-trace-id", traceID)
		}
		if requestID := logger.RequestID(ctx); requestID != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", requestID)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// unaryClientInterceptor 一元 RPC 拦截器：请求超时与重试
func unaryClientInterceptor(cfg ClientConfig) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()

		var lastErr error
		for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
			lastErr = invokeOnce(ctx, cfg.RequestTimeout, method, req, reply, cc, invoker, opts...)
			if lastErr == nil {
				logger.Debug(ctx, "gRPC request succeeded",
					"method", method,
					"attempts", attempt+1,
					"duration", time.Since(start),
				)
				return nil
			}

			st, ok := status.FromError(lastErr)
			if !ok || !shouldRetry(st.Code()) || attempt >= cfg.MaxRetries {
				break
			}

			select {
			case <-time.After(cfg.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		logger.Warn(ctx, "gRPC request failed",
			"method", method,
			"duration", time.Since(start),
			"error", lastErr,
		)
		return lastErr
	}
}

// breakerClientInterceptor 熔断拦截器，位于重试之内，每次尝试单独计数。
// 只有 shouldRetry 认定的传输类错误计入失败，参数错误不会触发熔断。
func breakerClientInterceptor(cb *breaker.Breaker) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		var callErr error
		_, err := cb.Execute(func() (any, error) {
			callErr = invoker(ctx, method, req, reply, cc, opts...)
			if callErr != nil && shouldRetry(status.Code(callErr)) {
				return nil, callErr
			}
			return nil, nil
		})
		if err != nil && callErr == nil {
			// 熔断打开或半开状态下请求数已满
			return status.Error(codes.Unavailable, err.Error())
		}
		return callErr
	}
}

func invokeOnce(ctx context.Context, timeout time.Duration, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// shouldRetry 判断是否应该重试
func shouldRetry(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
