package backtest

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"index-backtest/internal/align"
)

// EquityCurve 为单个窗口内逐日的累计净值，长度与窗口一致。
type EquityCurve []float64

// Result 汇总单个策略在全部窗口上的回测结果。
type Result struct {
	Strategy string
	Windows  []Window
	Curves   []EquityCurve
	Metrics  []Metrics
}

// Summary 返回各窗口指标的平均值。
func (r Result) Summary() Metrics {
	return averageMetrics(r.Metrics)
}

// Engine 在一组窗口上按策略复利累计净值。
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine 构建回测引擎。
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg.normalize(),
		logger: logger,
	}
}

// InitialValue 返回每个窗口的起始净值。
func (e *Engine) InitialValue() float64 {
	return e.cfg.InitialValue
}

// Simulate 为每个窗口生成一条净值曲线：首值为起始净值，
// 之后每一步乘以 strategy 对相邻两行给出的乘数。
func (e *Engine) Simulate(rows []align.Row, strategy Strategy, windows []Window) ([]EquityCurve, error) {
	if strategy == nil {
		return nil, errors.New("backtest: 策略不能为空")
	}

	curves := make([]EquityCurve, 0, len(windows))
	for wi, w := range windows {
		if !w.Within(len(rows)) || w.Size < 1 {
			return nil, fmt.Errorf("%w: 窗口 %d [%d,%d) 超出对齐行数 %d", ErrIndexOutOfRange, wi, w.Start, w.End(), len(rows))
		}

		curve := make(EquityCurve, 1, w.Size)
		curve[0] = e.cfg.InitialValue
		for i := w.Start; i+1 < w.End(); i++ {
			factor, err := strategy.Factor(rows[i], rows[i+1])
			if err != nil {
				return nil, fmt.Errorf("策略 %s 在窗口 %d 第 %d 行计算失败: %w", strategy.Name(), wi, i, err)
			}
			curve = append(curve, curve[len(curve)-1]*factor)
		}
		curves = append(curves, curve)
	}

	return curves, nil
}

// Run 执行模拟并计算每条曲线的绩效指标。
func (e *Engine) Run(rows []align.Row, strategy Strategy, windows []Window) (Result, error) {
	curves, err := e.Simulate(rows, strategy, windows)
	if err != nil {
		return Result{}, err
	}

	metrics := make([]Metrics, len(curves))
	for i, curve := range curves {
		metrics[i] = CalculateMetrics(curve)
	}

	result := Result{
		Strategy: strategy.Name(),
		Windows:  windows,
		Curves:   curves,
		Metrics:  metrics,
	}

	summary := result.Summary()
	e.logger.Info("策略回测完成",
		zap.String("strategy", result.Strategy),
		zap.Int("windows", len(windows)),
		zap.Float64("avg_total_return", summary.TotalReturn),
		zap.Float64("avg_max_drawdown", summary.MaxDrawdown),
		zap.Float64("avg_sharpe", summary.SharpeRatio),
	)

	return result, nil
}
