package backtest

import (
	"fmt"
	"math/rand/v2"
)

// Window 为对齐序列上的连续下标区间 [Start, Start+Size)。
type Window struct {
	Start int
	Size  int
}

// End 返回区间右端（不含）。
func (w Window) End() int {
	return w.Start + w.Size
}

// Within 判断窗口是否完全落在长度为 length 的序列内。
func (w Window) Within(length int) bool {
	return w.Start >= 0 && w.Size >= 0 && w.End() <= length
}

// NewRand 根据种子创建可复现的随机源。
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0))
}

// Sampler 从同一个随机源中依次抽取窗口，调用顺序固定时结果可复现。
type Sampler struct {
	rng *rand.Rand
}

// NewSampler 基于给定随机源创建 Sampler。
func NewSampler(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = NewRand(0)
	}
	return &Sampler{rng: rng}
}

// Sample 生成 count 个长度为 size 的窗口，起点在 [0, length-size] 上均匀分布，允许重叠与重复。
func (s *Sampler) Sample(count, size, length int) ([]Window, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: 窗口数量 %d 不能为负", ErrInvalidWindow, count)
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: 窗口长度 %d 必须大于0", ErrInvalidWindow, size)
	}
	if size > length {
		return nil, fmt.Errorf("%w: 窗口长度 %d 超过对齐行数 %d", ErrInvalidWindow, size, length)
	}

	maxStart := length - size
	windows := make([]Window, count)
	for i := range windows {
		windows[i] = Window{Start: s.rng.IntN(maxStart + 1), Size: size}
	}
	return windows, nil
}
