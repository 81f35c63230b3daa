// fxchain 命令行工具：输出行情、分组期权链与单个期权计算结果
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wyfcoding/fxoption/internal/fxoption/application"
	"github.com/wyfcoding/fxoption/internal/fxoption/infrastructure/client"
	"github.com/wyfcoding/fxoption/internal/fxoption/interfaces/cli"
	"github.com/wyfcoding/fxoption/pkg/grpcclient"
	"github.com/wyfcoding/fxoption/pkg/logger"
)

func main() {
	d := application.DefaultDefaults()

	fs := flag.NewFlagSet("fxchain", flag.ExitOnError)
	pair := fs.String("pair", "USD/INR", "currency pair label")
	spot := fs.Float64("spot", d.Market.Spot, "spot price")
	future := fs.Float64("future", d.Market.Future, "future price (display only)")
	vol := fs.Float64("vol", d.Market.Volatility, "annualized volatility")
	rd := fs.Float64("rd", d.Market.DomesticRate, "domestic risk-free rate")
	rf := fs.Float64("rf", d.Market.ForeignRate, "foreign risk-free rate")
	days := fs.Float64("days", d.Market.DaysToExpiry, "days to expiry")
	lower := fs.Float64("lower", d.Grid.LowerOffset, "strike range below spot")
	upper := fs.Float64("upper", d.Grid.UpperOffset, "strike range above spot")
	step := fs.Float64("step", d.Grid.Step, "strike step")
	strike := fs.Float64("strike", 0, "calculator strike (defaults to the ATM strike)")
	optType := fs.String("type", "call", "calculator option type: call or put")
	csvPath := fs.String("csv", "", "write the chain to a CSV file")
	remote := fs.String("remote", "", "price on a remote fxoption gRPC server (host:port)")
	timeout := fs.Duration("timeout", 10*time.Second, "overall timeout")
	_ = fs.Parse(os.Args[1:])

	if err := logger.Init(logger.Config{Level: "warn", Format: "text", Output: "stderr"}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// 只下发显式设置的参数，其余沿用服务端默认值
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	opt := func(name string, v *float64) *float64 {
		if set[name] {
			return v
		}
		return nil
	}
	market := application.MarketInput{
		Spot:         opt("spot", spot),
		Volatility:   opt("vol", vol),
		DomesticRate: opt("rd", rd),
		ForeignRate:  opt("rf", rf),
		DaysToExpiry: opt("days", days),
	}
	grid := application.GridInput{
		LowerOffset: opt("lower", lower),
		UpperOffset: opt("upper", upper),
		Step:        opt("step", step),
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	header := cli.MarketHeader{Pair: *pair, Spot: *spot, Future: *future}
	var pricer cli.Pricer = application.NewFXOptionService(d, nil)
	if *remote != "" {
		c, err := client.NewFXOptionClient(grpcclient.DefaultClientConfig(*remote))
		if err != nil {
			fatal(ctx, err)
		}
		defer c.Close()
		pricer = c
		// 未指定 -future 时展示服务端默认值
		if !set["future"] {
			if rd, err := c.Defaults(ctx); err == nil {
				header.Future = rd.Future
			} else {
				logger.Warn(ctx, "fetch remote defaults failed", "error", err)
			}
		}
	}

	if err := run(ctx, os.Stdout, pricer, runArgs{
		header:  header,
		market:  market,
		grid:    grid,
		strike:  opt("strike", strike),
		optType: *optType,
		csvPath: *csvPath,
	}); err != nil {
		fatal(ctx, err)
	}
}

type runArgs struct {
	header  cli.MarketHeader
	market  application.MarketInput
	grid    application.GridInput
	strike  *float64
	optType string
	csvPath string
}

func run(ctx context.Context, out io.Writer, p cli.Pricer, a runArgs) error {
	chain, err := p.GenerateChain(ctx, application.GenerateChainCommand{MarketInput: a.market, GridInput: a.grid})
	if err != nil {
		return fmt.Errorf("generate chain: %w", err)
	}

	// 展示实际参与定价的现价
	a.header.Spot = chain.Spot
	if err := cli.RenderMarket(out, a.header, chain); err != nil {
		return err
	}
	fmt.Fprintln(out)
	if err := cli.RenderChain(out, chain); err != nil {
		return err
	}

	quote, err := p.Calculate(ctx, application.CalculateCommand{
		MarketInput: a.market,
		GridInput:   a.grid,
		Strike:      a.strike,
		OptionType:  a.optType,
	})
	if err != nil {
		return fmt.Errorf("calculate: %w", err)
	}
	fmt.Fprintln(out)
	if err := cli.RenderQuote(out, quote); err != nil {
		return err
	}

	if a.csvPath == "" {
		return nil
	}
	f, err := os.Create(a.csvPath)
	if err != nil {
		return err
	}
	if err := cli.WriteCSV(f, chain); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nChain written to %s\n", a.csvPath)
	return nil
}

func fatal(ctx context.Context, err error) {
	logger.Error(ctx, "fxchain failed", "error", err)
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
