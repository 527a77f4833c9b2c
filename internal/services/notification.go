// internal/services/notification.go
package services

import (
	"github.com/Corphon/StoryboardMCP/internal/models"
)

// Notifier 瞬态用户通知通道接口
// 即发即弃，无背压要求；同一时刻最多展示一条，新通知替换旧通知
// 展示端的排队与动画不属于核心，由API层的WebSocket中心实现
type Notifier interface {
	Notify(message string, severity models.NotificationSeverity)
}

// NoopNotifier 空实现，测试和无推送场景使用
type NoopNotifier struct{}

// Notify 丢弃通知
func (NoopNotifier) Notify(message string, severity models.NotificationSeverity) {}
