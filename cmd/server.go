/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liyang960414/erp-sub001/internal/api"
	"github.com/liyang960414/erp-sub001/internal/config"
	"github.com/liyang960414/erp-sub001/internal/container"
	"github.com/liyang960414/erp-sub001/internal/metrics"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the erp-sub001 API server.
The server listens on the configured host and port, runs the import
task scheduler in the background and serves the import REST API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// 2. 初始化日志
		logger, err := api.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// 3. 配置热加载,调度器每轮取 watcher 里的最新配置
		watcher := config.NewConfigWatcher(cfg, configPath, logger)
		if err := watcher.Start(); err != nil {
			logger.WithError(err).Warn("config watcher disabled")
		}
		defer watcher.Stop()
		importCfg := func() config.ImportConfig {
			return watcher.GetConfig().Import
		}

		// 4. 初始化容器
		ctr, err := container.NewContainer(cfg, logger, importCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 5. 链路追踪
		if cfg.Tracing.Enabled {
			if err := api.InitTracing(cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio); err != nil {
				logger.WithError(err).Warn("tracing disabled")
				cfg.Tracing.Enabled = false
			}
		}

		// 6. 启动后台组件:Hub、调度器、指标收集
		runCtx, stop := context.WithCancel(context.Background())
		defer stop()

		go ctr.Hub().Run(runCtx)
		ctr.Scheduler().Start(runCtx)

		collector := metrics.NewCollector(ctr.DB(), 15*time.Second)
		collector.Start()
		defer collector.Stop()

		// 7. 设置路由
		router := api.SetupRoutes(&api.RouterDeps{
			DB:             ctr.DB(),
			Hub:            ctr.Hub(),
			Registry:       ctr.Registry(),
			TaskService:    ctr.TaskService(),
			MasterService:  ctr.MasterService(),
			SSEInterval:    cfg.Import.PollInterval(),
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			RateLimitRPS:   cfg.Server.RateLimitRPS,
			RateLimitBurst: cfg.Server.RateLimitBurst,
			EnableTracing:  cfg.Tracing.Enabled,
		})

		// 8. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		go func() {
			logger.WithField("addr", addr).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Fatal("failed to start server")
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutting down server")

		// 停止接收新请求,再停调度器,等在途任务收尾
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("server forced to shutdown")
		}
		ctr.Scheduler().Stop()
		stop()

		if cfg.Tracing.Enabled {
			if err := api.ShutdownTracing(shutdownCtx); err != nil {
				logger.WithError(err).Warn("failed to shutdown tracing")
			}
		}

		logger.Info("server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// 服务器配置标志
	serverCmd.Flags().String("config", "", "Config file path (default: config.yaml)")
}

// LoadConfig 加载配置
func LoadConfig(configPath string) (*config.Config, error) {
	return config.Load(configPath)
}
