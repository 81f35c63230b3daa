package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/wyfcoding/fxoption/internal/fxoption/application"
	fxgrpc "github.com/wyfcoding/fxoption/internal/fxoption/interfaces/grpc"
	"github.com/wyfcoding/fxoption/pkg/grpcclient"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newRemote(t *testing.T) *FXOptionClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	fxgrpc.NewServer(srv, application.NewFXOptionService(application.DefaultDefaults(), nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cfg := grpcclient.DefaultClientConfig("passthrough:///bufnet")
	cfg.DialOptions = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	}
	c, err := NewFXOptionClient(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFXOptionClient_MatchesLocalService(t *testing.T) {
	remote := newRemote(t)
	local := application.NewFXOptionService(application.DefaultDefaults(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	want, err := local.GenerateChain(ctx, application.GenerateChainCommand{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := remote.GenerateChain(ctx, application.GenerateChainCommand{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Rows) != len(want.Rows) {
		t.Fatalf("rows = %d, want %d", len(got.Rows), len(want.Rows))
	}
	for i := range want.Rows {
		if !got.Rows[i].Call.Equal(want.Rows[i].Call) || !got.Rows[i].Put.Equal(want.Rows[i].Put) || got.Rows[i].Moneyness != want.Rows[i].Moneyness {
			t.Fatalf("row %d = %+v, want %+v", i, got.Rows[i], want.Rows[i])
		}
	}

	quote, err := remote.Calculate(ctx, application.CalculateCommand{OptionType: "call"})
	if err != nil {
		t.Fatal(err)
	}
	if quote.Price.String() != "0.802658" {
		t.Fatalf("calculate price = %s", quote.Price)
	}

	d, err := remote.Defaults(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Spot != 83.20 || d.MaxChainRows != 2000 {
		t.Fatalf("defaults = %+v", d)
	}
}

func TestFXOptionClient_ErrorCodes(t *testing.T) {
	remote := newRemote(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := remote.PriceOption(ctx, application.PriceOptionCommand{Strike: 0, OptionType: "call"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
	}
}
