// internal/models/notification.go
package models

import "time"

// NotificationSeverity 通知级别
type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "info"
	SeveritySuccess NotificationSeverity = "success"
	SeverityWarning NotificationSeverity = "warning"
	SeverityError   NotificationSeverity = "error"
)

// Notification 用户可见的瞬态通知
// 同一时刻最多展示一条，新通知替换当前展示的通知
type Notification struct {
	Type      string               `json:"type"` // 固定为 "notification"
	Message   string               `json:"message"`
	Severity  NotificationSeverity `json:"severity"`
	Timestamp time.Time            `json:"timestamp"`
}
