package backtest

import (
	"fmt"
	"math"
)

// Normalize 将曲线换算为相对首值的变化比例：(v - first) / first。
// 首值为 0 时返回 ErrZeroBase。
func Normalize(curve []float64) ([]float64, error) {
	if len(curve) == 0 {
		return nil, nil
	}
	first := curve[0]
	if first == 0 {
		return nil, ErrZeroBase
	}

	out := make([]float64, len(curve))
	for i, v := range curve {
		out[i] = (v - first) / first
	}
	return out, nil
}

// NormalizeAll 逐条归一化，返回首个失败曲线的序号。
func NormalizeAll(curves [][]float64) ([][]float64, error) {
	out := make([][]float64, len(curves))
	for i, curve := range curves {
		normalized, err := Normalize(curve)
		if err != nil {
			return nil, fmt.Errorf("归一化第 %d 条曲线失败: %w", i, err)
		}
		out[i] = normalized
	}
	return out, nil
}

// CurvesAsFloats 将净值曲线转换为普通切片。
func CurvesAsFloats(curves []EquityCurve) [][]float64 {
	out := make([][]float64, len(curves))
	for i, c := range curves {
		out[i] = c
	}
	return out
}

// WithinTolerance 判断两条曲线在相对误差 tol 内是否一致。
// 任一侧出现 NaN 或 Inf 都视为不一致。
func WithinTolerance(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !finite(a[i]) || !finite(b[i]) {
			return false
		}
		diff := math.Abs(a[i] - b[i])
		scale := math.Max(1, math.Max(math.Abs(a[i]), math.Abs(b[i])))
		if diff > tol*scale {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
