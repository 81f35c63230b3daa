package grpcclient

import (
	"context"
	"testing"
	"time"

	"github.com/wyfcoding/fxoption/pkg/logger"
	"github.com/wyfcoding/pkg/breaker"
	pkgconfig "github.com/wyfcoding/pkg/config"
	pkgmetrics "github.com/wyfcoding/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestUnaryClientInterceptor_RetriesUnavailable(t *testing.T) {
	cfg := ClientConfig{MaxRetries: 2, RetryDelay: time.Millisecond}
	calls := 0
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		if calls < 3 {
			return status.Error(codes.Unavailable, "down")
		}
		return nil
	}

	if err := unaryClientInterceptor(cfg)(context.Background(), "/svc/M", nil, nil, nil, invoker); err != nil {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestUnaryClientInterceptor_NoRetryOnInvalidArgument(t *testing.T) {
	cfg := ClientConfig{MaxRetries: 5, RetryDelay: time.Millisecond}
	calls := 0
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		return status.Error(codes.InvalidArgument, "bad strike")
	}

	err := unaryClientInterceptor(cfg)(context.Background(), "/svc/M", nil, nil, nil, invoker)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v", status.Code(err))
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestUnaryClientInterceptor_RequestTimeout(t *testing.T) {
	cfg := ClientConfig{RequestTimeout: 50 * time.Millisecond}
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a deadline on the call context")
		}
		return nil
	}
	if err := unaryClientInterceptor(cfg)(context.Background(), "/svc/M", nil, nil, nil, invoker); err != nil {
		t.Fatal(err)
	}
}

func TestTraceClientInterceptor(t *testing.T) {
	ctx := logger.ContextWithTrace(context.Background(), "trace-9", "", "req-9")
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		if got := md.Get("x-trace-id"); len(got) != 1 || got[0] != "trace-9" {
			t.Errorf("x-trace-id = %v", got)
		}
		if got := md.Get("x-request-id"); len(got) != 1 || got[0] != "req-9" {
			t.Errorf("x-request-id = %v", got)
		}
		return nil
	}
	if err := traceClientInterceptor()(ctx, "/svc/M", nil, nil, nil, invoker); err != nil {
		t.Fatal(err)
	}
}

func TestNewClient_RequiresTarget(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error for empty target")
	}
}

func TestBreakerClientInterceptor(t *testing.T) {
	cb := breaker.NewBreaker(breaker.Settings{
		Name:        "fxoption-test",
		Config:      pkgconfig.CircuitBreakerConfig{Enabled: true, MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute},
		MinRequests: 3,
	}, pkgmetrics.NewMetrics("fxoption-test"))
	intercept := breakerClientInterceptor(cb)

	calls := 0
	invalid := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		return status.Error(codes.InvalidArgument, "bad strike")
	}
	for i := 0; i < 5; i++ {
		if err := intercept(context.Background(), "/svc/M", nil, nil, nil, invalid); status.Code(err) != codes.InvalidArgument {
			t.Fatalf("call %d code = %v, want InvalidArgument", i, status.Code(err))
		}
	}

	down := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		return status.Error(codes.Unavailable, "down")
	}
	// 前 5 次为成功计数，再失败 5 次后失败率达到 0.5
	for i := 0; i < 5; i++ {
		_ = intercept(context.Background(), "/svc/M", nil, nil, nil, down)
	}

	before := calls
	err := intercept(context.Background(), "/svc/M", nil, nil, nil, down)
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("code = %v, want Unavailable", status.Code(err))
	}
	if calls != before {
		t.Fatal("open breaker still invoked the server")
	}
}
