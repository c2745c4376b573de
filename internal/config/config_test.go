package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/liyang960414/erp-sub001/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig 测试默认配置
func TestDefaultConfig(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Import.PollInterval())
	assert.Equal(t, 30*time.Minute, cfg.Import.TaskTimeout())
	assert.Equal(t, 4, cfg.Import.GlobalConcurrency)

	// 依赖图默认值
	assert.Equal(t, []string{"unit"}, cfg.Import.Dependencies["material"])
	assert.Equal(t, []string{"material"}, cfg.Import.Dependencies["bom"])
	assert.Contains(t, cfg.Import.Dependencies["purchase_order"], "supplier")

	// 类型批处理参数
	assert.Equal(t, 500, cfg.Import.TypeConfig("material").BatchSize)
	assert.Equal(t, 10, cfg.Import.TypeConfig("supplier").Concurrency)
}

// TestPollIntervalFallback 测试非法轮询间隔回退默认值
func TestPollIntervalFallback(t *testing.T) {
	ic := config.ImportConfig{PollIntervalMs: 0}
	assert.Equal(t, 2*time.Second, ic.PollInterval())

	ic.PollIntervalMs = 500
	assert.Equal(t, 500*time.Millisecond, ic.PollInterval())
}

// TestCapFor 测试类型并发上限回退
func TestCapFor(t *testing.T) {
	ic := config.ImportConfig{
		GlobalConcurrency: 4,
		TypeConcurrency:   map[string]int{"material": 2},
	}

	assert.Equal(t, 2, ic.CapFor("material"))
	// 未配置的类型用全局值
	assert.Equal(t, 4, ic.CapFor("bom"))
}

// TestValidateDependencies 测试依赖图校验
func TestValidateDependencies(t *testing.T) {
	ic := config.ImportConfig{
		Dependencies: map[string][]string{
			"material": {"unit"},
			"bom":      {"material"},
		},
	}
	assert.NoError(t, ic.ValidateDependencies())

	// 成环必须报错
	ic.Dependencies = map[string][]string{
		"material": {"bom"},
		"bom":      {"material"},
	}
	err := ic.ValidateDependencies()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	// 自环
	ic.Dependencies = map[string][]string{"material": {"material"}}
	assert.Error(t, ic.ValidateDependencies())
}

// TestLoadFromFile 测试从配置文件加载
func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
import:
  poll_interval_ms: 1000
  global_concurrency: 2
  dependencies:
    bom: ["material"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Import.PollInterval())
	assert.Equal(t, 2, cfg.Import.GlobalConcurrency)
	assert.Equal(t, []string{"material"}, cfg.Import.Dependencies["bom"])
}

// TestLoadRejectsCyclicDependencies 测试配置文件里的依赖环被拒绝
func TestLoadRejectsCyclicDependencies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
import:
  dependencies:
    material: ["bom"]
    bom: ["material"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}
