package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"index-backtest/internal/quote"
)

const columnCount = 7

var (
	// ErrMalformedRow 表示单行数据无法解析，调用方应跳过该行。
	ErrMalformedRow = errors.New("loader: 数据行格式错误")
	// ErrUnsortedSeries 表示序列日期不是严格递增，无法参与对齐。
	ErrUnsortedSeries = errors.New("loader: 序列日期未严格递增")
)

// ParseRow 将一行 `date,open,high,low,close,adj_close,volume` 解析为 Record。
func ParseRow(row []string) (quote.Record, error) {
	if len(row) < columnCount {
		return quote.Record{}, fmt.Errorf("%w: 需要 %d 列，实际 %d 列", ErrMalformedRow, columnCount, len(row))
	}

	date, err := time.Parse(quote.DateLayout, strings.TrimSpace(row[0]))
	if err != nil {
		return quote.Record{}, fmt.Errorf("%w: 日期 %q: %v", ErrMalformedRow, row[0], err)
	}

	prices := make([]float64, 5)
	for i := range prices {
		raw := strings.TrimSpace(row[i+1])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return quote.Record{}, fmt.Errorf("%w: 第 %d 列 %q: %v", ErrMalformedRow, i+2, raw, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return quote.Record{}, fmt.Errorf("%w: 第 %d 列不是有限数值 %q", ErrMalformedRow, i+2, raw)
		}
		if v < 0 {
			return quote.Record{}, fmt.Errorf("%w: 第 %d 列为负值 %v", ErrMalformedRow, i+2, v)
		}
		prices[i] = v
	}

	volume, err := strconv.ParseInt(strings.TrimSpace(row[6]), 10, 64)
	if err != nil {
		return quote.Record{}, fmt.Errorf("%w: 成交量 %q: %v", ErrMalformedRow, row[6], err)
	}
	if volume < 0 {
		return quote.Record{}, fmt.Errorf("%w: 成交量为负值 %d", ErrMalformedRow, volume)
	}

	return quote.Record{
		Date:          date,
		Open:          prices[0],
		High:          prices[1],
		Low:           prices[2],
		Close:         prices[3],
		AdjustedClose: prices[4],
		Volume:        volume,
	}, nil
}

// ReadSeries 从 reader 读取整份数据，格式错误的行记录告警后跳过。
func ReadSeries(id string, r io.Reader, logger *zap.Logger) (quote.Series, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	series := quote.Series{ID: id}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				logger.Warn("无法解析数据行，已跳过", zap.String("series", id), zap.Int("line", parseErr.StartLine), zap.Error(err))
				continue
			}
			return quote.Series{}, fmt.Errorf("loader: 读取 %s 失败: %w", id, err)
		}

		rec, err := ParseRow(row)
		if err != nil {
			// 行号取自文件中的物理行，跨行引号字段不会造成偏移
			line, _ := reader.FieldPos(0)
			logger.Warn("无法解析数据行，已跳过",
				zap.String("series", id),
				zap.Int("line", line),
				zap.Strings("row", append([]string(nil), row...)),
				zap.Error(err),
			)
			continue
		}
		series.Records = append(series.Records, rec)
	}

	if idx, ok := series.StrictlyIncreasing(); !ok {
		return quote.Series{}, fmt.Errorf("%w: %s 第 %d 条记录日期 %s", ErrUnsortedSeries, id, idx,
			series.Records[idx].Date.Format(quote.DateLayout))
	}

	return series, nil
}

// ReadFile 打开文件并读取单个序列。
func ReadFile(id, path string, logger *zap.Logger) (series quote.Series, err error) {
	f, err := os.Open(path)
	if err != nil {
		return quote.Series{}, fmt.Errorf("loader: 打开 %q 失败: %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	return ReadSeries(id, f, logger)
}
