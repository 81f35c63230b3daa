package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fxoption/pkg/logger"
	"github.com/wyfcoding/fxoption/pkg/ratelimit"
	"github.com/wyfcoding/pkg/response"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// GinRateLimitMiddleware 按客户端 IP 限流
func GinRateLimitMiddleware(limiter ratelimit.RateLimiter, limit ratelimit.Limit) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := limiter.Allow(c.Request.Context(), "http:"+c.ClientIP(), limit)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter failed", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(ceilSeconds(res.RetryAfter)))
			response.ErrorWithStatus(c, http.StatusTooManyRequests, "Too Many Requests", "retry after "+res.RetryAfter.String())
			c.Abort()
			return
		}
		c.Next()
	}
}

// GRPCRateLimitInterceptor 按 peer 地址限流
func GRPCRateLimitInterceptor(limiter ratelimit.RateLimiter, limit ratelimit.Limit) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		res, err := limiter.Allow(ctx, "grpc:"+peerHost(ctx), limit)
		if err != nil {
			logger.Warn(ctx, "rate limiter failed", "error", err, "method", info.FullMethod)
			return handler(ctx, req)
		}
		if !res.Allowed {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded, retry after %s", res.RetryAfter)
		}
		return handler(ctx, req)
	}
}

// GRPCStreamRateLimitInterceptor 按 peer 地址限流，每个流只在建立时消耗一个令牌
func GRPCStreamRateLimitInterceptor(limiter ratelimit.RateLimiter, limit ratelimit.Limit) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		res, err := limiter.Allow(ctx, "grpc:"+peerHost(ctx), limit)
		if err != nil {
			logger.Warn(ctx, "rate limiter failed", "error", err, "method", info.FullMethod)
			return handler(srv, ss)
		}
		if !res.Allowed {
			return status.Errorf(codes.ResourceExhausted, "rate limit exceeded, retry after %s", res.RetryAfter)
		}
		return handler(srv, ss)
	}
}

func peerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
