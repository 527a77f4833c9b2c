// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/Corphon/StoryboardMCP/internal/config"
	"github.com/Corphon/StoryboardMCP/internal/di"
	"github.com/Corphon/StoryboardMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// 只从容器获取服务，不再创建新实例
	sessionService, ok := container.Get("session").(*services.SessionService)
	if !ok {
		return nil, fmt.Errorf("会话服务未正确初始化")
	}

	parserService, ok := container.Get("parser").(*services.ParserService)
	if !ok {
		return nil, fmt.Errorf("解析服务未正确初始化")
	}

	backupService, ok := container.Get("backup").(*services.BackupService)
	if !ok {
		return nil, fmt.Errorf("备份服务未正确初始化")
	}

	mediaLoader, ok := container.Get("media_loader").(*services.MediaLoaderService)
	if !ok {
		return nil, fmt.Errorf("参考图加载服务未正确初始化")
	}

	notificationHub, ok := container.Get("notifications").(*NotificationHub)
	if !ok {
		return nil, fmt.Errorf("通知中心未正确初始化")
	}

	handler := NewHandler(sessionService, parserService, backupService, mediaLoader, notificationHub)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// WebSocket 通知推送
	r.GET("/ws/notifications", handler.NotificationWebSocket)

	// 解析端点限流
	rateLimiter := NewRateLimiter()

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		api.GET("/health", handler.Health)

		// ===============================
		// 脚本解析
		// ===============================
		api.POST("/script/parse",
			RateLimitMiddleware(rateLimiter, 30, time.Minute),
			handler.ParseScript)

		// ===============================
		// 会话状态
		// ===============================
		sessionGroup := api.Group("/session")
		{
			sessionGroup.GET("", handler.GetSession)
			sessionGroup.POST("/navigate", handler.Navigate)
			sessionGroup.POST("/reset", handler.ResetSession)
			sessionGroup.POST("/raw-input", handler.SaveRawInput)
			sessionGroup.DELETE("/error", handler.DismissError)
			sessionGroup.PUT("/credential", handler.UpdateCredential)

			// 参考图：本地文件与远程URL两条路径汇聚到同一槽位
			sessionGroup.POST("/reference-image/url", handler.LoadReferenceImageFromURL)
			sessionGroup.POST("/reference-image/upload", handler.UploadReferenceImage)
			sessionGroup.DELETE("/reference-image", handler.ClearReferenceImage)
		}

		// ===============================
		// 媒体注册表（生成工作流回调）
		// ===============================
		mediaGroup := api.Group("/media")
		{
			mediaGroup.POST("/images", handler.UpdateImages)
			mediaGroup.POST("/videos", handler.UpdateVideos)
		}

		// ===============================
		// 备份
		// ===============================
		backupGroup := api.Group("/backup")
		{
			backupGroup.GET("/export", handler.ExportBackup)
			backupGroup.POST("/import", handler.ImportBackup)
			backupGroup.POST("/save", handler.SaveBackupFile)
			backupGroup.GET("/files", handler.ListBackupFiles)
			backupGroup.POST("/files/:name/restore", handler.RestoreBackupFile)
			backupGroup.DELETE("/files/:name", handler.DeleteBackupFile)
		}

		// 调试路由
		api.GET("/ws/status", handler.GetWebSocketStatus)
	}

	return r, nil
}
