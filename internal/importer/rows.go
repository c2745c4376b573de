package importer

import (
	"github.com/sirupsen/logrus"
)

// Group 一个表头行加若干明细行组成的逻辑记录
type Group struct {
	Head    Row
	Details []Row
}

// GroupRows 按"最后出现的表头优先"规则单遍分组
// 表头列非空即开启新组;明细序号列非空且存在当前组的行归入当前组;
// 没有前置表头的明细行直接丢弃,只记日志不计入错误
func GroupRows(rows []Row, schema *Schema, logger *logrus.Logger) []Group {
	var groups []Group
	current := -1

	for _, row := range rows {
		if row.Get(schema.HeadMarker) != "" {
			groups = append(groups, Group{Head: row})
			current = len(groups) - 1
		}
		if row.Get(schema.DetailMarker) == "" {
			continue
		}
		if current < 0 {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"row": row.Num,
				}).Debug("dropping detail row without preceding header")
			}
			continue
		}
		groups[current].Details = append(groups[current].Details, row)
	}
	return groups
}

// DedupGroups 按类型特定的自然键去重
// 表头字段先见者保留;重复组的明细按 (组, 序号) 合并,后写覆盖,
// 新序号按出现顺序追加
func DedupGroups(groups []Group, keyFn func(Group) string) []Group {
	var out []Group
	index := make(map[string]int, len(groups))
	seqIndex := make(map[string]map[string]int, len(groups))

	for _, g := range groups {
		key := keyFn(g)
		pos, seen := index[key]
		if !seen {
			index[key] = len(out)
			seqs := make(map[string]int, len(g.Details))
			merged := Group{Head: g.Head, Details: make([]Row, 0, len(g.Details))}
			for _, d := range g.Details {
				seq := d.Get("seq")
				if at, ok := seqs[seq]; ok && seq != "" {
					merged.Details[at] = d
					continue
				}
				seqs[seq] = len(merged.Details)
				merged.Details = append(merged.Details, d)
			}
			seqIndex[key] = seqs
			out = append(out, merged)
			continue
		}

		seqs := seqIndex[key]
		for _, d := range g.Details {
			seq := d.Get("seq")
			if at, ok := seqs[seq]; ok && seq != "" {
				out[pos].Details[at] = d
				continue
			}
			seqs[seq] = len(out[pos].Details)
			out[pos].Details = append(out[pos].Details, d)
		}
	}
	return out
}

// DedupRows 扁平类型按自然键去重,先见者保留
func DedupRows(rows []Row, keyFn func(Row) string) []Row {
	seen := make(map[string]struct{}, len(rows))
	var out []Row
	for _, row := range rows {
		key := keyFn(row)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}
