package importer

// CollectKeys 从行集合中提取去重后的非空自然键,保持遇到顺序
func CollectKeys(rows []Row, field string) []string {
	seen := make(map[string]struct{}, len(rows))
	var keys []string
	for _, row := range rows {
		v := row.Get(field)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		keys = append(keys, v)
	}
	return keys
}

// AppendKeys 向已有键列表追加去重后的新键
func AppendKeys(keys []string, rows []Row, field string) []string {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	for _, row := range rows {
		v := row.Get(field)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		keys = append(keys, v)
	}
	return keys
}

// IndexBy 将预加载实体建成只读的自然键查找表
// 未解析到的键不会出现在表中,调用方以缺席作为唯一失败信号
func IndexBy[T any](entities []T, keyFn func(T) string) map[string]T {
	index := make(map[string]T, len(entities))
	for _, e := range entities {
		index[keyFn(e)] = e
	}
	return index
}
