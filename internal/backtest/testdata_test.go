package backtest

import (
	"time"

	"index-backtest/internal/align"
	"index-backtest/internal/quote"
)

type bar struct {
	open, high, close float64
}

// makeRows 构造对齐行：bars[day][series]。
func makeRows(bars [][]bar) []align.Row {
	rows := make([]align.Row, len(bars))
	for d, day := range bars {
		row := make(align.Row, len(day))
		for s, b := range day {
			row[s] = quote.Record{
				Date:          time.Date(2020, 1, d+1, 0, 0, 0, 0, time.UTC),
				Open:          b.open,
				High:          b.high,
				Low:           b.open,
				Close:         b.close,
				AdjustedClose: b.close,
				Volume:        int64(1000 * (d + 1)),
			}
		}
		rows[d] = row
	}
	return rows
}
