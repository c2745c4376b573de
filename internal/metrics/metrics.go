package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 导入任务创建数
	importTasksCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_tasks_created_total",
			Help: "Total number of import tasks created",
		},
		[]string{"import_type"},
	)

	// 导入任务完成数
	importTasksFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_tasks_finished_total",
			Help: "Total number of import tasks that reached a terminal state",
		},
		[]string{"import_type", "status"}, // completed, failed, cancelled
	)

	// 导入行数
	importRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Total number of rows processed by importers",
		},
		[]string{"import_type", "result"}, // success, failure
	)

	// 单任务执行时长
	importTaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "import_task_duration_seconds",
			Help:    "Import task execution duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"import_type"},
	)

	// 运行中任务数
	importTasksRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "import_tasks_running",
			Help: "Number of import tasks currently running",
		},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 任务状态分布
	importTasksByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "import_tasks_by_state",
			Help: "Number of import tasks by state",
		},
		[]string{"state"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(importTasksCreatedTotal)
	prometheus.MustRegister(importTasksFinishedTotal)
	prometheus.MustRegister(importRowsTotal)
	prometheus.MustRegister(importTaskDuration)
	prometheus.MustRegister(importTasksRunning)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(importTasksByState)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTaskCreated 记录导入任务创建
func RecordTaskCreated(importType string) {
	importTasksCreatedTotal.WithLabelValues(importType).Inc()
}

// RecordTaskFinished 记录导入任务到达终态
func RecordTaskFinished(importType, status string, duration float64) {
	importTasksFinishedTotal.WithLabelValues(importType, status).Inc()
	importTaskDuration.WithLabelValues(importType).Observe(duration)
}

// RecordImportRows 记录导入成功/失败行数
func RecordImportRows(importType string, success, failure int) {
	importRowsTotal.WithLabelValues(importType, "success").Add(float64(success))
	importRowsTotal.WithLabelValues(importType, "failure").Add(float64(failure))
}

// TaskStarted 任务进入运行态
func TaskStarted() {
	importTasksRunning.Inc()
}

// TaskStopped 任务离开运行态
func TaskStopped() {
	importTasksRunning.Dec()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateTasksByState 更新任务状态分布指标
func UpdateTasksByState(state string, count float64) {
	importTasksByState.WithLabelValues(state).Set(count)
}
