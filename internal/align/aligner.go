// Package align 将多条独立加载的日线序列同步到共同的交易日历上。
package align

import (
	"time"

	"index-backtest/internal/quote"
)

// Row 为同一交易日所有标的的记录，顺序与输入序列一致。
type Row []quote.Record

// Date 返回该行的交易日。
func (r Row) Date() time.Time {
	if len(r) == 0 {
		return time.Time{}
	}
	return r[0].Day()
}

// Aligner 以多游标逐步推进的方式产出对齐行，只能单次消费。
// 要求每条序列的日期严格递增。
type Aligner struct {
	series  []quote.Series
	cursors []int
	done    bool
}

// New 创建 Aligner；没有输入序列时立即结束。
func New(series ...quote.Series) *Aligner {
	return &Aligner{
		series:  series,
		cursors: make([]int, len(series)),
		done:    len(series) == 0,
	}
}

// Next 返回下一条对齐行；任一序列耗尽后返回 false。
func (a *Aligner) Next() (Row, bool) {
	for !a.done {
		if a.exhausted() {
			a.done = true
			break
		}

		reference := a.current(0)
		lagging := -1
		ahead := false
		for i := 1; i < len(a.series); i++ {
			rec := a.current(i)
			if rec.SameDay(reference) {
				continue
			}
			if rec.Day().Before(reference.Day()) {
				lagging = i
			} else {
				ahead = true
			}
			break
		}

		switch {
		case lagging >= 0:
			a.cursors[lagging]++
		case ahead:
			a.cursors[0]++
		default:
			row := make(Row, len(a.series))
			for i := range a.series {
				row[i] = a.current(i)
				a.cursors[i]++
			}
			return row, true
		}
	}
	return nil, false
}

func (a *Aligner) current(i int) quote.Record {
	return a.series[i].Records[a.cursors[i]]
}

func (a *Aligner) exhausted() bool {
	for i, s := range a.series {
		if a.cursors[i] >= s.Len() {
			return true
		}
	}
	return false
}

// Collect 消费全部对齐行并返回切片。
func Collect(series ...quote.Series) []Row {
	aligner := New(series...)
	var rows []Row
	for {
		row, ok := aligner.Next()
		if !ok {
			return rows
		}
		rows = append(rows, row)
	}
}
