package quote

import "time"

// DateLayout 为输入与输出共用的日期格式。
const DateLayout = "2006-01-02"

// Record 表示单个标的某一交易日的 OHLCV 数据，构造后不可修改。
type Record struct {
	Date          time.Time
	Open          float64
	High          float64
	Low           float64
	Close         float64
	AdjustedClose float64
	Volume        int64
}

// Day 返回去除时间部分后的日期，用于逻辑日期比较。
func (r Record) Day() time.Time {
	y, m, d := r.Date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay 判断两条记录是否属于同一交易日。
func (r Record) SameDay(other Record) bool {
	return r.Day().Equal(other.Day())
}

// Series 为单个标的按日期非递减排列的记录序列。
type Series struct {
	ID      string
	Records []Record
}

// Len 返回记录条数。
func (s Series) Len() int {
	return len(s.Records)
}

// StrictlyIncreasing 检查日期是否严格递增，返回第一处违规的位置。
func (s Series) StrictlyIncreasing() (int, bool) {
	for i := 1; i < len(s.Records); i++ {
		if !s.Records[i].Day().After(s.Records[i-1].Day()) {
			return i, false
		}
	}
	return -1, true
}
