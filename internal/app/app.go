// internal/app/app.go
package app

import (
	"fmt"

	"github.com/Corphon/StoryboardMCP/internal/api"
	"github.com/Corphon/StoryboardMCP/internal/config"
	"github.com/Corphon/StoryboardMCP/internal/di"
	"github.com/Corphon/StoryboardMCP/internal/services"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
// 处理器层只从容器获取，不自行创建实例
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	// 1. 通知中心（会话服务依赖它推送解析/恢复结果）
	notificationHub := api.NewNotificationHub()
	container.Register("notifications", notificationHub)

	// 2. 无状态服务
	container.Register("parser", services.NewParserService())
	container.Register("media_loader", services.NewMediaLoaderService(cfg.MaxImageBytes))

	// 3. 备份服务（需要备份目录）
	backupService, err := services.NewBackupService(cfg.BackupDir)
	if err != nil {
		return fmt.Errorf("初始化备份服务失败: %w", err)
	}
	container.Register("backup", backupService)

	// 4. 媒体注册表与会话服务（凭证在构造时从持久化配置读取一次）
	mediaRegistry := services.NewMediaRegistry()
	container.Register("media_registry", mediaRegistry)
	container.Register("session", services.NewSessionService(mediaRegistry, notificationHub))

	return nil
}
