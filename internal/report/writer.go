// Package report 负责将回测结果写成 CSV / Parquet 文件。
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// ValuesWriter 将每行一个窗口的数值矩阵编码到 w。
type ValuesWriter interface {
	Extension() string
	WriteValues(w io.Writer, rows [][]float64) error
}

// NewValuesWriter 根据格式名创建写入器。
func NewValuesWriter(format string, precision int) (ValuesWriter, error) {
	switch strings.ToLower(format) {
	case "", "csv":
		return CSVWriter{Precision: precision}, nil
	case "parquet":
		return ParquetWriter{}, nil
	default:
		return nil, fmt.Errorf("report: 不支持的输出格式 %q", format)
	}
}

// CSVWriter 以无表头 CSV 输出，每个窗口一行。
type CSVWriter struct {
	Precision int // -1 表示最短无损表示
}

func (CSVWriter) Extension() string {
	return ".csv"
}

func (c CSVWriter) WriteValues(w io.Writer, rows [][]float64) error {
	labels := make([][]string, len(rows))
	for i, row := range rows {
		labels[i] = c.format(row)
	}
	return WriteLabels(w, labels)
}

func (c CSVWriter) format(row []float64) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if c.Precision < 0 {
			out[i] = strconv.FormatFloat(v, 'g', -1, 64)
		} else {
			out[i] = strconv.FormatFloat(v, 'f', c.Precision, 64)
		}
	}
	return out
}

// WriteLabels 将文本矩阵写为无表头 CSV。
func WriteLabels(w io.Writer, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("report: 写入 CSV 失败: %w", err)
	}
	return nil
}

// CurvePoint 为 Parquet 输出的单个数据点。
type CurvePoint struct {
	Window int32   `parquet:"window"`
	Step   int32   `parquet:"step"`
	Value  float64 `parquet:"value"`
}

// ParquetWriter 以 (window, step, value) 长表形式输出。
type ParquetWriter struct{}

func (ParquetWriter) Extension() string {
	return ".parquet"
}

func (ParquetWriter) WriteValues(w io.Writer, rows [][]float64) error {
	var points []CurvePoint
	for wi, row := range rows {
		for step, v := range row {
			points = append(points, CurvePoint{Window: int32(wi), Step: int32(step), Value: v})
		}
	}
	if err := parquet.Write(w, points); err != nil {
		return fmt.Errorf("report: 写入 Parquet 失败: %w", err)
	}
	return nil
}
