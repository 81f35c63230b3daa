// 包 命令行展示：期权链分组表格、计算器结果与 CSV 导出
package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"github.com/wyfcoding/fxoption/internal/fxoption/application"
)

// Pricer 本地服务与远程客户端的共同能力
type Pricer interface {
	GenerateChain(ctx context.Context, cmd application.GenerateChainCommand) (*application.ChainDTO, error)
	Calculate(ctx context.Context, cmd application.CalculateCommand) (*application.OptionQuoteDTO, error)
}

// MarketHeader 行情头部展示的数据
type MarketHeader struct {
	Pair   string
	Spot   float64
	Future float64
}

// RenderMarket 输出即期、期货与利率平价远期
func RenderMarket(w io.Writer, h MarketHeader, chain *application.ChainDTO) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Market Prices (%s)\n", h.Pair)
	fmt.Fprintf(tw, "Spot:\t%s\n", formatFloat(h.Spot))
	fmt.Fprintf(tw, "Future:\t%s\n", formatFloat(h.Future))
	if chain != nil {
		fmt.Fprintf(tw, "Forward (parity):\t%s\n", chain.Forward.String())
		fmt.Fprintf(tw, "Days to expiry:\t%s\n", formatFloat(math.Round(chain.TimeToExpiry*365*1e6)/1e6))
	}
	return tw.Flush()
}

// RenderChain 分别输出 ATM / ITM / OTM 三张表
func RenderChain(w io.Writer, chain *application.ChainDTO) error {
	if len(chain.Rows) == 0 {
		_, err := fmt.Fprintln(w, "Option chain is empty for the requested strike range.")
		return err
	}

	sections := []struct {
		title string
		rows  []application.ChainRowDTO
	}{
		{"ATM Strike", chain.ATM},
		{"In The Money (ITM)", chain.ITM},
		{"Out of The Money (OTM)", chain.OTM},
	}
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := renderTable(w, s.title, s.rows); err != nil {
			return err
		}
	}
	return nil
}

func renderTable(w io.Writer, title string, rows []application.ChainRowDTO) error {
	fmt.Fprintf(w, "== %s (%d)\n", title, len(rows))
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "(none)")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Strike\tCall\tPut\tStatus\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", r.Strike.StringFixed(4), r.Call.StringFixed(6), r.Put.StringFixed(6), r.Moneyness)
	}
	return tw.Flush()
}

// RenderQuote 计算器结果；退化情形提示 Greeks 不可用
func RenderQuote(w io.Writer, q *application.OptionQuoteDTO) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Option Calculator")
	fmt.Fprintf(tw, "Type:\t%s\n", q.OptionType)
	fmt.Fprintf(tw, "Strike:\t%s\n", q.Strike.String())
	fmt.Fprintf(tw, "Option price:\t%s\n", q.Price.StringFixed(6))

	if !q.GreeksAvailable || q.D1 == nil || q.D2 == nil {
		fmt.Fprintln(tw, "Zero volatility or expiry: Greeks unavailable.")
		return tw.Flush()
	}
	fmt.Fprintf(tw, "d1:\t%s\n", q.D1.StringFixed(6))
	fmt.Fprintf(tw, "d2:\t%s\n", q.D2.StringFixed(6))
	if g := q.Greeks; g != nil {
		fmt.Fprintf(tw, "Delta:\t%s\n", g.Delta.StringFixed(6))
		fmt.Fprintf(tw, "Gamma:\t%s\n", g.Gamma.StringFixed(6))
		fmt.Fprintf(tw, "Vega (1 vol pt):\t%s\n", g.Vega.StringFixed(6))
		fmt.Fprintf(tw, "Theta (1 day):\t%s\n", g.Theta.StringFixed(6))
		fmt.Fprintf(tw, "Rho domestic (1%%):\t%s\n", g.RhoDomestic.StringFixed(6))
		fmt.Fprintf(tw, "Rho foreign (1%%):\t%s\n", g.RhoForeign.StringFixed(6))
	}
	return tw.Flush()
}

// WriteCSV 导出期权链，行按行权价升序
func WriteCSV(w io.Writer, chain *application.ChainDTO) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"strike", "call", "put", "status"}); err != nil {
		return err
	}
	for _, r := range chain.Rows {
		rec := []string{r.Strike.String(), r.Call.String(), r.Put.String(), r.Moneyness}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
