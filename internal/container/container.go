package container

import (
	"fmt"
	"time"

	"github.com/liyang960414/erp-sub001/internal/config"
	"github.com/liyang960414/erp-sub001/internal/database"
	"github.com/liyang960414/erp-sub001/internal/importer"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/liyang960414/erp-sub001/internal/scheduler"
	"github.com/liyang960414/erp-sub001/internal/service"
	"github.com/liyang960414/erp-sub001/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、仓储、导入处理器和调度器
type Container struct {
	db            *gorm.DB
	logger        *logrus.Logger
	hub           *websocket.Hub
	registry      *importer.Registry
	taskRepo      repository.ImportTaskRepository
	sched         *scheduler.Scheduler
	taskService   service.ImportTaskService
	masterService service.MasterDataService
}

// NewContainer 创建依赖注入容器
// importCfg 每次调用返回当前导入配置,配合配置热加载
func NewContainer(cfg *config.Config, logger *logrus.Logger, importCfg func() config.ImportConfig) (*Container, error) {
	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return NewContainerWithDB(db, logger, importCfg)
}

// NewContainerWithDB 用现成的数据库连接组装容器,测试用
func NewContainerWithDB(db *gorm.DB, logger *logrus.Logger, importCfg func() config.ImportConfig) (*Container, error) {
	// 2. WebSocket Hub
	hub := websocket.NewHub()

	// 3. 导入处理器注册表,各类型批处理参数来自配置
	registry := importer.NewRegistry()
	registerImporters(registry, db, logger, importCfg())

	// 4. 任务仓储与调度器
	taskRepo := repository.NewImportTaskRepository(db)
	sched := scheduler.NewScheduler(taskRepo, registry, hub, logger, importCfg)

	// 5. 服务层
	taskService := service.NewImportTaskService(taskRepo, registry, hub, logger, sched, importCfg)
	masterService := service.NewMasterDataService(db)

	return &Container{
		db:            db,
		logger:        logger,
		hub:           hub,
		registry:      registry,
		taskRepo:      taskRepo,
		sched:         sched,
		taskService:   taskService,
		masterService: masterService,
	}, nil
}

// registerImporters 注册全部导入处理器
func registerImporters(registry *importer.Registry, db *gorm.DB, logger *logrus.Logger, cfg config.ImportConfig) {
	batchOpts := func(importType string) importer.BatchOptions {
		tc := cfg.TypeConfig(importType)
		return importer.BatchOptions{
			Size:        tc.BatchSize,
			Concurrency: tc.Concurrency,
		}
	}

	handlers := []importer.Handler{
		importer.NewUnitImporter(db, logger, batchOpts(importer.TypeUnit)),
		importer.NewMaterialImporter(db, logger, batchOpts(importer.TypeMaterial)),
		importer.NewSupplierImporter(db, logger, batchOpts(importer.TypeSupplier)),
		importer.NewBomImporter(db, logger, batchOpts(importer.TypeBom)),
		importer.NewPurchaseOrderImporter(db, logger, batchOpts(importer.TypePurchaseOrder)),
		importer.NewSaleOrderImporter(db, logger, batchOpts(importer.TypeSaleOrder)),
		importer.NewSaleOutstockImporter(db, logger, batchOpts(importer.TypeSaleOutstock)),
		importer.NewSubReqOrderImporter(db, logger, batchOpts(importer.TypeSubReqOrder)),
	}
	for _, h := range handlers {
		registry.Register(h)
	}
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Registry 获取导入处理器注册表
func (c *Container) Registry() *importer.Registry {
	return c.registry
}

// TaskRepository 获取导入任务仓储
func (c *Container) TaskRepository() repository.ImportTaskRepository {
	return c.taskRepo
}

// Scheduler 获取调度器
func (c *Container) Scheduler() *scheduler.Scheduler {
	return c.sched
}

// TaskService 获取导入任务服务
func (c *Container) TaskService() service.ImportTaskService {
	return c.taskService
}

// MasterService 获取主数据查询服务
func (c *Container) MasterService() service.MasterDataService {
	return c.masterService
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.sched != nil {
		c.sched.Stop()
	}
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	return nil
}
