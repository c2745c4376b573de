package importer

import (
	"strings"

	"github.com/shopspring/decimal"
)

// 数值清洗替换器:去掉 ASCII 和全角千分位逗号及空白
var numericCleaner = strings.NewReplacer(",", "", "，", "", " ", "", " ", "")

// cleanNumeric 清洗数值字符串
func cleanNumeric(s string) string {
	return numericCleaner.Replace(strings.TrimSpace(s))
}

// ParseDecimal 解析定点小数,清洗千分位分隔符后解析
func ParseDecimal(s string) (decimal.Decimal, bool) {
	cleaned := cleanNumeric(s)
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDecimalDefault 解析可选数值字段,空白或不可解析时回退到默认值
func ParseDecimalDefault(s string, def decimal.Decimal) decimal.Decimal {
	if d, ok := ParseDecimal(s); ok {
		return d
	}
	return def
}

// ParseNullDecimal 解析可空数值字段,空白或不可解析时返回 null 而非错误
func ParseNullDecimal(s string) decimal.NullDecimal {
	if d, ok := ParseDecimal(s); ok {
		return decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return decimal.NullDecimal{}
}
