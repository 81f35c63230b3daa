// Package application 外汇期权服务的应用层：合并默认参数、调用领域计算、组装 DTO
package application

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/fxoption/internal/fxoption/domain"
	"github.com/wyfcoding/fxoption/pkg/logger"
	"github.com/wyfcoding/fxoption/pkg/metrics"
	"github.com/wyfcoding/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrChainTooLarge 网格行数超过 MaxChainRows
	ErrChainTooLarge = errors.New("option chain too large")
	// ErrBatchTooLarge 批量合约数超过 MaxChainRows
	ErrBatchTooLarge = errors.New("batch too large")
)

// FXOptionService 外汇期权门面服务
type FXOptionService struct {
	defaults Defaults
	metrics  metrics.PricingCollector
}

// NewFXOptionService 构造函数。collector 为 nil 时不记录指标。
func NewFXOptionService(defaults Defaults, collector metrics.PricingCollector) *FXOptionService {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if defaults.MaxChainRows <= 0 {
		defaults.MaxChainRows = DefaultDefaults().MaxChainRows
	}
	return &FXOptionService{defaults: defaults, metrics: collector}
}

// Defaults 返回页面控件默认值
func (s *FXOptionService) Defaults() DefaultsDTO {
	d := s.defaults
	return DefaultsDTO{
		Spot:         d.Market.Spot,
		Future:       d.Market.Future,
		Volatility:   d.Market.Volatility,
		DomesticRate: d.Market.DomesticRate,
		ForeignRate:  d.Market.ForeignRate,
		DaysToExpiry: d.Market.DaysToExpiry,
		LowerOffset:  d.Grid.LowerOffset,
		UpperOffset:  d.Grid.UpperOffset,
		Step:         d.Grid.Step,
		MaxChainRows: d.MaxChainRows,
	}
}

// PriceOption 单个期权定价
func (s *FXOptionService) PriceOption(ctx context.Context, cmd PriceOptionCommand) (*OptionQuoteDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.observe("price", time.Now())

	typ, err := domain.ParseOptionType(cmd.OptionType)
	if err != nil {
		return nil, s.fail(ctx, "price", err)
	}
	m := cmd.MarketInput.resolve(s.defaults.Market)
	return s.quote(ctx, "price", m, domain.OptionSpec{Strike: cmd.Strike, Type: typ})
}

// GenerateChain 生成期权链
func (s *FXOptionService) GenerateChain(ctx context.Context, cmd GenerateChainCommand) (*ChainDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.observe("chain", time.Now())
	ctx, span := tracing.StartSpan(ctx, "FXOptionService.GenerateChain")
	defer span.End()

	m := cmd.MarketInput.resolve(s.defaults.Market)
	grid := cmd.GridInput.resolve(s.defaults.Grid)
	if err := s.checkGrid(m.Spot, grid); err != nil {
		return nil, s.fail(ctx, "chain", err)
	}

	chain, err := domain.GenerateChain(m, grid)
	if err != nil {
		return nil, s.fail(ctx, "chain", err)
	}
	dto, err := toChainDTO(chain)
	if err != nil {
		return nil, s.fail(ctx, "chain", err)
	}

	s.metrics.RecordChain(len(chain.Rows))
	tracing.AddTag(ctx, "chain.rows", len(chain.Rows))
	logger.Debug(ctx, "option chain generated",
		"spot", m.Spot,
		"time_to_expiry", m.TimeToExpiry,
		"rows", len(chain.Rows),
		"atm", chain.Count(domain.MoneynessATM),
		"itm", chain.Count(domain.MoneynessITM),
		"otm", chain.Count(domain.MoneynessOTM),
		"atm_strike", chain.ATMStrike.String(),
	)
	return dto, nil
}

// Calculate 计算器：未给出行权价时取期权链的平值行权价，网格为空时取现价；未给出类型时按看涨计算
func (s *FXOptionService) Calculate(ctx context.Context, cmd CalculateCommand) (*OptionQuoteDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.observe("calculate", time.Now())

	if strings.TrimSpace(cmd.OptionType) == "" {
		cmd.OptionType = string(domain.OptionTypeCall)
	}
	typ, err := domain.ParseOptionType(cmd.OptionType)
	if err != nil {
		return nil, s.fail(ctx, "calculate", err)
	}
	m := cmd.MarketInput.resolve(s.defaults.Market)

	strike := m.Spot
	if cmd.Strike != nil {
		strike = *cmd.Strike
	} else {
		grid := cmd.GridInput.resolve(s.defaults.Grid)
		if err := s.checkGrid(m.Spot, grid); err != nil {
			return nil, s.fail(ctx, "calculate", err)
		}
		if atm, ok := domain.GridATMStrike(m.Spot, grid); ok {
			strike = atm.InexactFloat64()
		}
	}
	return s.quote(ctx, "calculate", m, domain.OptionSpec{Strike: strike, Type: typ})
}

// BatchPriceOptions 并发定价一组合约；单个合约失败记录在结果中，不影响其他合约
func (s *FXOptionService) BatchPriceOptions(ctx context.Context, cmd BatchPriceOptionsCommand) (*BatchPricingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(cmd.Contracts) == 0 {
		return nil, s.fail(ctx, "batch", fmt.Errorf("%w: batch has no contracts", domain.ErrInvalidInput))
	}
	if len(cmd.Contracts) > s.defaults.MaxChainRows {
		return nil, s.fail(ctx, "batch", fmt.Errorf("%w: %d contracts exceeds limit %d",
			ErrBatchTooLarge, len(cmd.Contracts), s.defaults.MaxChainRows))
	}

	batchID := cmd.BatchID
	if batchID == "" {
		batchID = uuid.New().String()
	}
	ctx, span := tracing.StartSpan(ctx, "FXOptionService.BatchPriceOptions")
	defer span.End()
	tracing.AddTag(ctx, "batch.id", batchID)
	tracing.AddTag(ctx, "batch.contracts", len(cmd.Contracts))
	defer logger.LogDuration(ctx, "batch priced", "batch_id", batchID, "contracts", len(cmd.Contracts))()

	results := make([]BatchItemDTO, len(cmd.Contracts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range cmd.Contracts {
		g.Go(func() error {
			quote, err := s.PriceOption(gctx, c)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				results[i] = BatchItemDTO{Index: i, Error: err.Error()}
				return nil
			}
			results[i] = BatchItemDTO{Index: i, Quote: quote}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &BatchPricingResult{BatchID: batchID, Results: results}
	for _, r := range results {
		if r.Quote != nil {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
	}
	return out, nil
}

func (s *FXOptionService) quote(ctx context.Context, op string, m domain.MarketParameters, o domain.OptionSpec) (*OptionQuoteDTO, error) {
	res, err := domain.PriceOption(m, o)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	dto, err := toQuoteDTO(m, o, res)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	s.metrics.RecordOptionPriced(string(o.Type))
	logger.Debug(ctx, "option priced",
		"operation", op,
		"type", o.Type,
		"spot", m.Spot,
		"strike", o.Strike,
		"time_to_expiry", m.TimeToExpiry,
		"price", dto.Price.String(),
		"greeks_available", dto.GreeksAvailable,
	)
	return dto, nil
}

func (s *FXOptionService) checkGrid(spot float64, grid domain.StrikeGrid) error {
	if n := grid.Len(spot); n > s.defaults.MaxChainRows {
		return fmt.Errorf("%w: %d strikes exceeds limit %d", ErrChainTooLarge, n, s.defaults.MaxChainRows)
	}
	return nil
}

func (s *FXOptionService) fail(ctx context.Context, op string, err error) error {
	kind := ErrorKind(err)
	s.metrics.RecordPricingError(kind)
	tracing.SetError(ctx, err)
	logger.Warn(ctx, "pricing request rejected", "operation", op, "kind", kind, "error", err)
	return err
}

func (s *FXOptionService) observe(op string, start time.Time) {
	s.metrics.ObservePricingDuration(op, time.Since(start).Seconds())
}

// ErrorKind 错误分类，用于指标标签与传输层映射
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidOptionType):
		return "invalid_option_type"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrChainTooLarge):
		return "chain_too_large"
	case errors.Is(err, ErrBatchTooLarge):
		return "batch_too_large"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}

// IsValidationError 是否为调用方输入导致的错误
func IsValidationError(err error) bool {
	switch ErrorKind(err) {
	case "invalid_option_type", "invalid_input", "chain_too_large", "batch_too_large":
		return true
	}
	return false
}
