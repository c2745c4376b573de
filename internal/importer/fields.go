package importer

import (
	"time"
)

// 支持的日期格式,按出现频率排列
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006-01-02 15:04:05",
	"01-02-06",
}

// ParseDate 解析日期字段,空白或不可解析时返回 nil
func ParseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// notFoundError 构造"引用不存在"的行级错误
func notFoundError(section string, rowNum int, field, entity, code string) RowError {
	return RowError{
		Section:   section,
		RowNumber: rowNum,
		Field:     field,
		Message:   entity + " not found: " + code,
	}
}

// requiredError 构造"必填字段缺失"的行级错误
func requiredError(section string, rowNum int, field string) RowError {
	return RowError{
		Section:   section,
		RowNumber: rowNum,
		Field:     field,
		Message:   field + " is required",
	}
}
