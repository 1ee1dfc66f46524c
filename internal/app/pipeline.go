package app

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"index-backtest/internal/align"
	"index-backtest/internal/backtest"
	"index-backtest/internal/quote"
	"index-backtest/internal/store"
)

const (
	buyAndHold       = "buy_and_hold"
	buyCloseSellOpen = "buy_close_sell_open"
	shiftingSands    = "shifting_sands"
)

// strategyOrder 固定策略执行顺序，保证输出可复现。
var strategyOrder = []string{buyAndHold, buyCloseSellOpen, shiftingSands}

// tables 为写文件前已全部算好的结果。
type tables struct {
	field      quote.Field
	extracted  [][]float64
	normalized map[string][][]float64
	results    map[string]backtest.Result
	dates      [][]string
}

type pipeline struct {
	rows     []align.Row
	windows  []backtest.Window
	primary  int
	engine   *backtest.Engine
	registry *backtest.Registry
	logger   *zap.Logger
}

func (p pipeline) compute(fieldName string) (tables, error) {
	field, err := quote.ParseField(fieldName)
	if err != nil {
		return tables{}, err
	}
	if !field.Numeric() {
		return tables{}, fmt.Errorf("%w: %q 不是数值字段", quote.ErrFieldNotFound, fieldName)
	}

	out := tables{
		field:      field,
		normalized: make(map[string][][]float64, len(strategyOrder)),
		results:    make(map[string]backtest.Result, len(strategyOrder)),
	}

	if out.extracted, err = p.extractNormalized(field); err != nil {
		return tables{}, err
	}

	for _, name := range strategyOrder {
		strategy, err := p.registry.Build(name, p.primary)
		if err != nil {
			return tables{}, err
		}
		result, err := p.engine.Run(p.rows, strategy, p.windows)
		if err != nil {
			return tables{}, err
		}
		normalized, err := backtest.NormalizeAll(backtest.CurvesAsFloats(result.Curves))
		if err != nil {
			return tables{}, fmt.Errorf("策略 %s: %w", name, err)
		}
		out.results[name] = result
		out.normalized[name] = normalized
	}

	highs := out.extracted
	if field != quote.FieldHigh {
		if highs, err = p.extractNormalized(quote.FieldHigh); err != nil {
			return tables{}, err
		}
	}
	if err := p.checkConsistency(highs, out.normalized[buyAndHold]); err != nil {
		return tables{}, err
	}

	out.dates = make([][]string, len(p.windows))
	for i, w := range p.windows {
		labels, err := backtest.ExtractLabels(p.rows, p.primary, quote.FieldDate, w)
		if err != nil {
			return tables{}, err
		}
		out.dates[i] = labels
	}

	return out, nil
}

func (p pipeline) extractNormalized(field quote.Field) ([][]float64, error) {
	raw := make([][]float64, len(p.windows))
	for i, w := range p.windows {
		values, err := backtest.Extract(p.rows, p.primary, field, w)
		if err != nil {
			return nil, err
		}
		raw[i] = values
	}
	normalized, err := backtest.NormalizeAll(raw)
	if err != nil {
		return nil, fmt.Errorf("提取字段 %s: %w", field, err)
	}
	return normalized, nil
}

// checkConsistency 校验买入持有模拟与直接提取的最高价曲线一致。
func (p pipeline) checkConsistency(extracted, simulated [][]float64) error {
	correlations := make([]float64, 0, len(extracted))
	for i := range extracted {
		if !backtest.WithinTolerance(extracted[i], simulated[i], consistencyTolerance) {
			return fmt.Errorf("窗口 %d: 买入持有模拟与最高价提取结果不一致", i)
		}
		if c := backtest.Correlation(extracted[i], simulated[i]); !math.IsNaN(c) {
			correlations = append(correlations, c)
		}
	}
	if len(correlations) > 0 {
		p.logger.Debug("买入持有一致性校验通过", zap.Float64("mean_correlation", stat.Mean(correlations, nil)))
	}
	return nil
}

func (t tables) windowResults() []store.WindowResult {
	var out []store.WindowResult
	for _, name := range strategyOrder {
		result, ok := t.results[name]
		if !ok {
			continue
		}
		for i, w := range result.Windows {
			m := result.Metrics[i]
			dates := t.dates[i]
			out = append(out, store.WindowResult{
				Strategy:    name,
				Window:      i,
				Start:       w.Start,
				Size:        w.Size,
				StartDate:   dates[0],
				EndDate:     dates[len(dates)-1],
				TotalReturn: m.TotalReturn,
				MaxDrawdown: m.MaxDrawdown,
				SharpeRatio: m.SharpeRatio,
			})
		}
	}
	return out
}
