// Package middleware 提供 Gin 与 gRPC 的通用中间件（request id、日志、panic recover、CORS、指标、限流）。
// 访问日志、recovery、HTTP 指标与 tracing 复用 wyfcoding/pkg/middleware。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wyfcoding/fxoption/pkg/logger"
	pkgmetrics "github.com/wyfcoding/pkg/metrics"
	pkgmw "github.com/wyfcoding/pkg/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// gin.Context 中保存 ID 的 key
const (
	RequestIDKey = "request_id"
	TraceIDKey   = "trace_id"
	SpanIDKey    = "span_id"
)

// 传播 ID 用的 HTTP header / gRPC metadata
const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

const exposeHeaders = "X-Request-ID, X-Trace-ID, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After"

// GinRequestIDMiddleware 生成 request/trace/span ID 并写入请求 context 与响应头
func GinRequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		spanID := uuid.New().String()

		c.Set(RequestIDKey, requestID)
		c.Set(TraceIDKey, traceID)
		c.Set(SpanIDKey, spanID)
		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderTraceID, traceID)

		c.Request = c.Request.WithContext(logger.ContextWithTrace(c.Request.Context(), traceID, spanID, requestID))
		c.Next()
	}
}

// GinLoggingMiddleware 访问日志，写入全局 logger
func GinLoggingMiddleware() gin.HandlerFunc {
	return pkgmw.Logger(logger.Get().Logger)
}

// GinRecoveryMiddleware panic 恢复，返回统一的 500 响应
func GinRecoveryMiddleware() gin.HandlerFunc {
	return pkgmw.Recovery(logger.Get().Logger)
}

// GinCORSMiddleware CORS 中间件。allowOrigins 为空或包含 "*" 时允许任意来源，
// 否则只回显白名单内的 Origin。
func GinCORSMiddleware(allowOrigins []string) gin.HandlerFunc {
	if len(allowOrigins) == 0 || slices.Contains(allowOrigins, "*") {
		cors := pkgmw.CORS()
		return func(c *gin.Context) {
			c.Header("Access-Control-Expose-Headers", exposeHeaders)
			cors(c)
		}
	}

	allowed := make(map[string]struct{}, len(allowOrigins))
	for _, o := range allowOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
		}
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID, X-Trace-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Header("Access-Control-Expose-Headers", exposeHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// grpcContext 从 incoming metadata 读取或生成 ID 并写入 context
func grpcContext(ctx context.Context) context.Context {
	requestID := metadataValue(ctx, HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	traceID := metadataValue(ctx, HeaderTraceID)
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return logger.ContextWithTrace(ctx, traceID, uuid.New().String(), requestID)
}

func logGRPC(ctx context.Context, method string, duration time.Duration, err error) {
	if err != nil {
		st, _ := status.FromError(err)
		logger.Warn(ctx, "gRPC request failed",
			"method", method,
			"error_code", st.Code().String(),
			"error_message", st.Message(),
			"duration", duration,
		)
		return
	}
	logger.Info(ctx, "gRPC request completed",
		"method", method,
		"duration", duration,
	)
}

// GRPCLoggingInterceptor gRPC 日志拦截器
func GRPCLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = grpcContext(ctx)
		start := time.Now()
		resp, err := handler(ctx, req)
		logGRPC(ctx, info.FullMethod, time.Since(start), err)
		return resp, err
	}
}

// GRPCStreamLoggingInterceptor 流式 RPC 日志拦截器，ID 通过 stream.Context() 传给 handler
func GRPCStreamLoggingInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := grpcContext(ss.Context())
		start := time.Now()
		err := handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
		logGRPC(ctx, info.FullMethod, time.Since(start), err)
		return err
	}
}

func recoverGRPC(ctx context.Context, method string, r any) error {
	logger.Error(ctx, "gRPC request panicked",
		"method", method,
		"panic", r,
		"stack", string(debug.Stack()),
	)
	return status.Error(codes.Internal, fmt.Sprintf("internal error: %v", r))
}

// GRPCRecoveryInterceptor gRPC panic 恢复拦截器，panic 转换为 codes.Internal
func GRPCRecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				resp, err = nil, recoverGRPC(ctx, info.FullMethod, r)
			}
		}()
		return handler(ctx, req)
	}
}

// GRPCStreamRecoveryInterceptor 流式 RPC panic 恢复拦截器
func GRPCStreamRecoveryInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = recoverGRPC(ss.Context(), info.FullMethod, r)
			}
		}()
		return handler(srv, ss)
	}
}

// GRPCStreamMetricsInterceptor 按 unary 指标的同一组标签记录流式 RPC，耗时覆盖整个流
func GRPCStreamMetricsInterceptor(m *pkgmetrics.Metrics) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		m.GrpcRequestsTotal.WithLabelValues("server", info.FullMethod, status.Code(err).String()).Inc()
		m.GrpcRequestDuration.WithLabelValues("server", info.FullMethod).Observe(time.Since(start).Seconds())
		return err
	}
}

// contextStream 替换 ServerStream 的 context
type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context {
	return s.ctx
}

// metadataValue 从 incoming metadata 读取第一个值
func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
