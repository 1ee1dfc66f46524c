package backtest

import (
	"fmt"

	"index-backtest/internal/align"
	"index-backtest/internal/quote"
)

// Extract 读取窗口内第 series 个标的的数值字段。
func Extract(rows []align.Row, series int, field quote.Field, w Window) ([]float64, error) {
	if err := checkWindow(rows, series, w); err != nil {
		return nil, err
	}

	values := make([]float64, 0, w.Size)
	for i := w.Start; i < w.End(); i++ {
		v, err := rows[i][series].Value(field)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// ExtractLabels 以文本形式读取窗口内任意字段，主要用于输出窗口日期。
func ExtractLabels(rows []align.Row, series int, field quote.Field, w Window) ([]string, error) {
	if err := checkWindow(rows, series, w); err != nil {
		return nil, err
	}

	labels := make([]string, 0, w.Size)
	for i := w.Start; i < w.End(); i++ {
		label, err := rows[i][series].Label(field)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, nil
}

func checkWindow(rows []align.Row, series int, w Window) error {
	if !w.Within(len(rows)) {
		return fmt.Errorf("%w: 窗口 [%d,%d) 超出对齐行数 %d", ErrIndexOutOfRange, w.Start, w.End(), len(rows))
	}
	for i := w.Start; i < w.End(); i++ {
		if series < 0 || series >= len(rows[i]) {
			return fmt.Errorf("%w: 标的序号 %d 超出范围 [0,%d)", ErrIndexOutOfRange, series, len(rows[i]))
		}
	}
	return nil
}
