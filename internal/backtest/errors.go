package backtest

import "errors"

var (
	// ErrInvalidWindow 表示窗口参数超出对齐序列可用范围。
	ErrInvalidWindow = errors.New("backtest: 窗口参数无效")
	// ErrIndexOutOfRange 表示标的序号或窗口下标越界。
	ErrIndexOutOfRange = errors.New("backtest: 下标越界")
	// ErrZeroDenominator 表示策略比值的分母为 0。
	ErrZeroDenominator = errors.New("backtest: 策略比值分母为0")
	// ErrZeroBase 表示归一化曲线首值为 0。
	ErrZeroBase = errors.New("backtest: 归一化基准值为0")
	// ErrUnknownStrategy 表示策略名称未注册。
	ErrUnknownStrategy = errors.New("backtest: 未知策略")
)
