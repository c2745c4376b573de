package repository

// 批量 IN 查询的分片大小上限,避免超长 IN 子句
const lookupChunkSize = 1000

// chunkKeys 将键列表按固定大小分片,保持原始顺序
func chunkKeys(keys []string, size int) [][]string {
	if size <= 0 {
		size = lookupChunkSize
	}
	var chunks [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}
