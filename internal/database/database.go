package database

import (
	"context"
	"fmt"
	"time"

	"github.com/liyang960414/erp-sub001/internal/config"
	"github.com/liyang960414/erp-sub001/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := BuildDSN(cfg)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 从配置中读取连接池参数,如果没有配置则使用默认值
	poolConfig := GetPoolConfig()
	if cfg.MaxIdleConns > 0 {
		poolConfig.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		// 如果不是最后一次重试,等待后重试
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// 导入任务
		&model.ImportTask{},
		&model.ImportTaskDependency{},
		&model.ImportTaskItem{},
		&model.ImportTaskFailure{},
		// 主数据
		&model.UnitGroup{},
		&model.Unit{},
		&model.MaterialGroup{},
		&model.Material{},
		&model.Supplier{},
		// BOM
		&model.BillOfMaterial{},
		&model.BomItem{},
		// 单据
		&model.PurchaseOrder{},
		&model.PurchaseOrderItem{},
		&model.PurchaseOrderDelivery{},
		&model.SaleOrder{},
		&model.SaleOrderItem{},
		&model.SaleOutstock{},
		&model.SaleOutstockItem{},
		&model.SubReqOrder{},
		&model.SubReqOrderItem{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// CreateIndexes 创建 AutoMigrate 覆盖不到的复合索引
func CreateIndexes(db *gorm.DB) error {
	// 调度器的两个热点查询:按状态取任务、按状态加类型统计运行数
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_import_tasks_status_created ON import_tasks(status, created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_import_tasks_status_created: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_import_tasks_status_type ON import_tasks(status, import_type)").Error; err != nil {
		return fmt.Errorf("failed to create idx_import_tasks_status_type: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_task_items_task_seq ON import_task_items(task_id, seq)").Error; err != nil {
		return fmt.Errorf("failed to create idx_task_items_task_seq: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_task_failures_task_row ON import_task_failures(task_id, row_number)").Error; err != nil {
		return fmt.Errorf("failed to create idx_task_failures_task_row: %w", err)
	}
	return nil
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx) == nil
}
