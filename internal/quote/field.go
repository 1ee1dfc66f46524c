package quote

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFieldNotFound 表示引用了 Record 不存在的字段。
var ErrFieldNotFound = errors.New("quote: 字段不存在")

// Field 标识 Record 的一个属性。
type Field string

const (
	FieldDate          Field = "date"
	FieldOpen          Field = "open"
	FieldHigh          Field = "high"
	FieldLow           Field = "low"
	FieldClose         Field = "close"
	FieldAdjustedClose Field = "adj_close"
	FieldVolume        Field = "volume"
)

var fieldAliases = map[string]Field{
	"date":           FieldDate,
	"open":           FieldOpen,
	"high":           FieldHigh,
	"low":            FieldLow,
	"close":          FieldClose,
	"adj_close":      FieldAdjustedClose,
	"adjusted_close": FieldAdjustedClose,
	"volume":         FieldVolume,
}

// ParseField 将字段名解析为 Field，大小写不敏感。
func ParseField(name string) (Field, error) {
	field, ok := fieldAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	return field, nil
}

// Numeric 表示该字段能否以数值形式读取。
func (f Field) Numeric() bool {
	switch f {
	case FieldOpen, FieldHigh, FieldLow, FieldClose, FieldAdjustedClose, FieldVolume:
		return true
	default:
		return false
	}
}

// Value 读取记录的数值字段，volume 转换为 float64。
func (r Record) Value(f Field) (float64, error) {
	switch f {
	case FieldOpen:
		return r.Open, nil
	case FieldHigh:
		return r.High, nil
	case FieldLow:
		return r.Low, nil
	case FieldClose:
		return r.Close, nil
	case FieldAdjustedClose:
		return r.AdjustedClose, nil
	case FieldVolume:
		return float64(r.Volume), nil
	case FieldDate:
		return 0, fmt.Errorf("%w: %q 不是数值字段", ErrFieldNotFound, f)
	default:
		return 0, fmt.Errorf("%w: %q", ErrFieldNotFound, f)
	}
}

// Label 以文本形式返回任意字段，日期按 DateLayout 输出。
func (r Record) Label(f Field) (string, error) {
	if f == FieldDate {
		return r.Date.Format(DateLayout), nil
	}
	v, err := r.Value(f)
	if err != nil {
		return "", err
	}
	if f == FieldVolume {
		return fmt.Sprintf("%d", r.Volume), nil
	}
	return fmt.Sprintf("%g", v), nil
}
