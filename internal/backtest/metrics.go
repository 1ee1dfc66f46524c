package backtest

import (
	"math"

	talib "github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// tradingDaysPerYear 用于日收益年化。
const tradingDaysPerYear = 252

// Metrics 记录单条净值曲线的绩效指标。
type Metrics struct {
	TotalReturn float64
	MaxDrawdown float64
	SharpeRatio float64
}

// CalculateMetrics 计算总收益、最大回撤与年化夏普。
func CalculateMetrics(equity []float64) Metrics {
	if len(equity) == 0 {
		return Metrics{}
	}

	initial := equity[0]
	final := equity[len(equity)-1]
	totalReturn := 0.0
	if initial > 0 {
		totalReturn = final/initial - 1
	}

	return Metrics{
		TotalReturn: totalReturn,
		MaxDrawdown: computeDrawdown(equity),
		SharpeRatio: computeSharpe(stepReturns(equity)),
	}
}

// stepReturns 由 ROCR(1) 得到逐日收益率。
func stepReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	rocr := talib.Rocr(equity, 1)
	returns := make([]float64, 0, len(rocr)-1)
	for _, r := range rocr[1:] {
		returns = append(returns, r-1)
	}
	return returns
}

func computeDrawdown(equity []float64) float64 {
	var peak float64
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return math.Abs(maxDD)
}

func computeSharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return (mean / std) * math.Sqrt(tradingDaysPerYear)
}

func averageMetrics(all []Metrics) Metrics {
	if len(all) == 0 {
		return Metrics{}
	}
	totals := make([]float64, len(all))
	drawdowns := make([]float64, len(all))
	sharpes := make([]float64, len(all))
	for i, m := range all {
		totals[i] = m.TotalReturn
		drawdowns[i] = m.MaxDrawdown
		sharpes[i] = m.SharpeRatio
	}
	return Metrics{
		TotalReturn: stat.Mean(totals, nil),
		MaxDrawdown: stat.Mean(drawdowns, nil),
		SharpeRatio: stat.Mean(sharpes, nil),
	}
}

// Correlation 返回两条等长曲线的皮尔逊相关系数，长度不足时返回 NaN。
func Correlation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return math.NaN()
	}
	return stat.Correlation(a, b, nil)
}
