package repository

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChunkKeys 测试键列表分片
func TestChunkKeys(t *testing.T) {
	keys := make([]string, 0, 2500)
	for i := 0; i < 2500; i++ {
		keys = append(keys, fmt.Sprintf("K%04d", i))
	}

	chunks := chunkKeys(keys, 1000)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 500)
	assert.Equal(t, "K0000", chunks[0][0])
	assert.Equal(t, "K2499", chunks[2][499])

	// 非法分片大小回退到默认值
	chunks = chunkKeys(keys, 0)
	require.Len(t, chunks, 3)

	assert.Nil(t, chunkKeys(nil, 10))
}
