package metrics

import (
	"context"
	"time"

	"github.com/liyang960414/erp-sub001/internal/model"
	"gorm.io/gorm"
)

// Collector 指标收集器
type Collector struct {
	db       *gorm.DB
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, interval time.Duration) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			// 更新数据库连接数指标
			_ = UpdateDatabaseConnections(c.db)
			c.collectTaskStates()
		}
	}
}

// collectTaskStates 更新任务状态分布指标
func (c *Collector) collectTaskStates() {
	type row struct {
		Status string
		Cnt    int64
	}
	var rows []row
	if err := c.db.Model(&model.ImportTask{}).
		Select("status, count(*) as cnt").
		Group("status").
		Scan(&rows).Error; err != nil {
		return
	}

	counts := make(map[string]float64, len(rows))
	for _, r := range rows {
		counts[r.Status] = float64(r.Cnt)
	}
	// 没有任务的状态也要归零,否则仪表盘残留旧值
	for _, state := range []string{
		model.TaskStatusWaiting, model.TaskStatusQueued, model.TaskStatusRunning,
		model.TaskStatusCompleted, model.TaskStatusFailed, model.TaskStatusCancelled,
	} {
		UpdateTasksByState(state, counts[state])
	}
}
