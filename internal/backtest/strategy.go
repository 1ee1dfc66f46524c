package backtest

import (
	"fmt"
	"sort"
	"strings"

	"index-backtest/internal/align"
)

// Strategy 根据相邻两日的对齐数据给出净值乘数：
// value(next) = value(day) * Factor(day, next)。
// 实现必须无副作用，不得修改输入。
type Strategy interface {
	Name() string
	Factor(day, next align.Row) (float64, error)
}

// BuyAndHold 持有单一标的，以最高价衡量日间变化。
type BuyAndHold struct {
	Series int
}

func (s BuyAndHold) Name() string {
	return "buy_and_hold"
}

func (s BuyAndHold) Factor(day, next align.Row) (float64, error) {
	if err := checkSeries(s.Series, day, next); err != nil {
		return 0, err
	}
	return ratio(next[s.Series].High, day[s.Series].High)
}

// BuyCloseSellOpen 收盘买入、次日开盘卖出。
type BuyCloseSellOpen struct {
	Series int
}

func (s BuyCloseSellOpen) Name() string {
	return "buy_close_sell_open"
}

func (s BuyCloseSellOpen) Factor(day, next align.Row) (float64, error) {
	if err := checkSeries(s.Series, day, next); err != nil {
		return 0, err
	}
	return ratio(next[s.Series].Open, day[s.Series].Close)
}

// ShiftingSands 当日收盘买入日内跌幅最大（close/open 最小）的标的，次日开盘卖出。
// 并列时取序号最小者。
type ShiftingSands struct{}

func (ShiftingSands) Name() string {
	return "shifting_sands"
}

func (ShiftingSands) Factor(day, next align.Row) (float64, error) {
	if len(day) == 0 || len(next) != len(day) {
		return 0, fmt.Errorf("%w: 对齐行长度 %d/%d", ErrIndexOutOfRange, len(day), len(next))
	}

	worst, err := WorstPerformer(day)
	if err != nil {
		return 0, err
	}
	return ratio(next[worst].Open, day[worst].Close)
}

// WorstPerformer 返回当日 close/open 最小的标的序号。
func WorstPerformer(day align.Row) (int, error) {
	worst := -1
	var worstRatio float64
	for i, rec := range day {
		r, err := ratio(rec.Close, rec.Open)
		if err != nil {
			return -1, fmt.Errorf("标的 %d 日内涨跌: %w", i, err)
		}
		if worst < 0 || r < worstRatio {
			worst = i
			worstRatio = r
		}
	}
	if worst < 0 {
		return -1, fmt.Errorf("%w: 对齐行为空", ErrIndexOutOfRange)
	}
	return worst, nil
}

func checkSeries(idx int, day, next align.Row) error {
	if idx < 0 || idx >= len(day) || idx >= len(next) {
		return fmt.Errorf("%w: 标的序号 %d", ErrIndexOutOfRange, idx)
	}
	return nil
}

func ratio(num, den float64) (float64, error) {
	if den == 0 {
		return 0, ErrZeroDenominator
	}
	return num / den, nil
}

// Registry 按名称管理策略构造器。
type Registry struct {
	builders map[string]func(series int) Strategy
}

// NewRegistry 创建包含内置策略的 Registry。
func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]func(series int) Strategy)}
	r.Register("buy_and_hold", func(series int) Strategy { return BuyAndHold{Series: series} })
	r.Register("buy_close_sell_open", func(series int) Strategy { return BuyCloseSellOpen{Series: series} })
	r.Register("shifting_sands", func(int) Strategy { return ShiftingSands{} })
	return r
}

// Register 注册或覆盖一个策略构造器。
func (r *Registry) Register(name string, build func(series int) Strategy) {
	r.builders[name] = build
}

// Build 构造指定名称的策略，series 对不依赖单一标的的策略无效。
func (r *Registry) Build(name string, series int) (Strategy, error) {
	build, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q，可用策略: %s", ErrUnknownStrategy, name, strings.Join(r.List(), ", "))
	}
	return build(series), nil
}

// List 返回按名称排序的策略列表。
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
