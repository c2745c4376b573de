package importer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column 行模式中的一列
type Column struct {
	Name     string // 字段名,Row.Get 的键
	Title    string // 表头标题(仅文档用途,按列位置取值)
	Required bool
}

// Schema 某一导入类型的固定行模式
// 列按文件中的位置排列,表头行数为固定偏移
type Schema struct {
	Sheet        string // 工作表名,空表示取第一个工作表
	HeaderRows   int    // 跳过的表头行数
	Columns      []Column
	HeadMarker   string // 标识表头行的列名(该列非空即为新表头)
	DetailMarker string // 标识明细行的列名(通常为行序号列)
}

// Column 按字段名查找列定义
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Row 一个已解码的物理行
type Row struct {
	Num    int // 文件中的行号,从 1 开始
	Fields map[string]string
}

// Get 按列名取值,返回去除首尾空白后的字符串
func (r Row) Get(name string) string {
	return strings.TrimSpace(r.Fields[name])
}

// Blank 判断整行是否为空
func (r Row) Blank() bool {
	for _, v := range r.Fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ParseSheet 从文件字节流式解析出行序列
// 单遍前向扫描:跳过表头偏移,丢弃空行;单元格类型异常由 excelize
// 还原为字符串,无法还原的按空白处理,留给后续业务校验拒绝
func ParseSheet(data []byte, schema *Schema) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheet := schema.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("spreadsheet has no sheets")
		}
		sheet = sheets[0]
	}

	iter, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	defer iter.Close()

	var rows []Row
	rowNum := 0
	for iter.Next() {
		rowNum++
		cells, err := iter.Columns()
		if err != nil {
			// 行解码失败按空行处理,不中断整个流
			continue
		}
		if rowNum <= schema.HeaderRows {
			continue
		}

		fields := make(map[string]string, len(schema.Columns))
		blank := true
		for i, col := range schema.Columns {
			var v string
			if i < len(cells) {
				v = strings.TrimSpace(cells[i])
			}
			fields[col.Name] = v
			if v != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, Row{Num: rowNum, Fields: fields})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate sheet %q: %w", sheet, err)
	}
	return rows, nil
}
