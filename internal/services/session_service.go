// internal/services/session_service.go
package services

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Corphon/StoryboardMCP/internal/config"
	apperrors "github.com/Corphon/StoryboardMCP/internal/errors"
	"github.com/Corphon/StoryboardMCP/internal/models"
)

// ViewMode 会话当前视图
type ViewMode string

const (
	// ViewInput 脚本输入视图
	ViewInput ViewMode = "input"
	// ViewOutput 分镜编辑视图
	ViewOutput ViewMode = "output"
)

// SessionService 持有整个工作集的进程级会话状态机
// 文档、媒体注册表、参考图、凭证、错误槽的唯一属主；
// 消费方通过快照读取，通过这里的变更方法写入，绝不直接改内部状态
type SessionService struct {
	mu sync.RWMutex

	view           ViewMode
	document       *models.StoryboardDocument
	media          *MediaRegistry
	referenceImage string
	rawInput       string
	credential     string

	// 单个"最近错误"槽位，每次解析尝试替换而非累积
	lastError *apperrors.AppError

	notifier Notifier
}

// SessionSnapshot 会话状态的只读视图
type SessionSnapshot struct {
	View           ViewMode                   `json:"view"`
	Document       *models.StoryboardDocument `json:"document,omitempty"`
	Images         map[int]string             `json:"generated_images"`
	Videos         map[int]string             `json:"video_urls"`
	ReferenceImage string                     `json:"reference_image,omitempty"`
	RawInput       string                     `json:"raw_input"`
	HasCredential  bool                       `json:"has_credential"`
	LastError      *SessionError              `json:"last_error,omitempty"`
}

// SessionError 错误槽位的对外形态
type SessionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewSessionService 创建会话服务
// 初始状态：输入视图、空文档、空注册表，凭证从持久化配置读取一次
func NewSessionService(media *MediaRegistry, notifier Notifier) *SessionService {
	if media == nil {
		media = NewMediaRegistry()
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}

	return &SessionService{
		view:       ViewInput,
		media:      media,
		credential: config.GetAPIKey(),
		notifier:   notifier,
	}
}

// View 返回当前视图
func (s *SessionService) View() ViewMode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.view
}

// HasDocument 检查会话中是否持有文档
func (s *SessionService) HasDocument() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.document != nil
}

// Document 返回当前文档的副本，无文档返回nil
func (s *SessionService) Document() *models.StoryboardDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyDocument(s.document)
}

// Snapshot 返回会话状态快照
func (s *SessionService) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := SessionSnapshot{
		View:           s.view,
		Document:       copyDocument(s.document),
		Images:         s.media.Images(),
		Videos:         s.media.Videos(),
		ReferenceImage: s.referenceImage,
		RawInput:       s.rawInput,
		HasCredential:  s.credential != "",
	}

	if s.lastError != nil {
		snapshot.LastError = &SessionError{
			Code:    s.lastError.Code,
			Message: s.lastError.Message,
		}
	}

	return snapshot
}

// ApplyParsedDocument 解析成功后的唯一文档写入路径
// 设置文档、清空错误槽、切换到输出视图
func (s *SessionService) ApplyParsedDocument(doc *models.StoryboardDocument) {
	s.mu.Lock()
	s.document = doc
	s.lastError = nil
	s.view = ViewOutput
	count := len(doc.StoryboardSequence)
	s.mu.Unlock()

	s.notifier.Notify(fmt.Sprintf("脚本解析成功，共 %d 个分镜", count), models.SeveritySuccess)
}

// RestoreBackup 从备份整体恢复工作集
// 文档和两个媒体映射一起替换，绝不部分恢复
func (s *SessionService) RestoreBackup(blob *models.BackupBlob) {
	s.mu.Lock()
	s.document = blob.Data
	s.media.ReplaceAll(blob.GeneratedImages, blob.VideoUrls)
	if blob.Data != nil && blob.Data.ReferenceImage != "" {
		s.referenceImage = blob.Data.ReferenceImage
	}
	s.lastError = nil
	s.view = ViewOutput
	s.mu.Unlock()

	s.notifier.Notify("备份恢复成功", models.SeveritySuccess)
}

// NavigateToOutput 显式导航到输出视图
// 没有文档时是空操作（守卫而不是错误），返回是否发生了切换
func (s *SessionService) NavigateToOutput() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.document == nil {
		return false
	}

	s.view = ViewOutput
	s.lastError = nil
	return true
}

// Reset 显式重置请求：回到输入视图
// 只清除瞬态错误槽，刻意保留文档、媒体注册表、原始输入和参考图，
// 用户回到输入视图仍能看到之前的文本继续迭代
func (s *SessionService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view = ViewInput
	s.lastError = nil
}

// RecordError 记录边界捕获的错误（替换槽位），现有文档和视图不受影响
func (s *SessionService) RecordError(err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		appErr = apperrors.NewProcessingError(err.Error(), err)
	}

	s.mu.Lock()
	s.lastError = appErr
	s.mu.Unlock()

	s.notifier.Notify(appErr.Message, models.SeverityError)
}

// DismissError 显式清除错误槽
func (s *SessionService) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastError = nil
}

// LastError 返回错误槽中的错误，可能为nil
func (s *SessionService) LastError() *apperrors.AppError {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastError
}

// SetCredential 更新生成服务凭证并写穿到持久化存储
// 除非空性外没有结构校验；清空时从持久化存储整体移除
func (s *SessionService) SetCredential(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)

	if err := config.UpdateAPIKey(apiKey); err != nil {
		return apperrors.WrapError(err, "保存凭证失败", apperrors.ErrorTypeError)
	}

	s.mu.Lock()
	s.credential = apiKey
	s.mu.Unlock()

	return nil
}

// Credential 返回当前凭证
func (s *SessionService) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.credential
}

// SetReferenceImage 写入参考图槽位
// 并发加载不排队不取消，最后完成的写入生效
func (s *SessionService) SetReferenceImage(dataURI string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.referenceImage = dataURI
}

// ReferenceImage 返回当前参考图
func (s *SessionService) ReferenceImage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.referenceImage
}

// SetRawInput 逐字保存用户输入文本，与解析成败无关
// 解析失败不会丢失用户的原文
func (s *SessionService) SetRawInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rawInput = text
}

// RawInput 返回用户最后一次输入的原文
func (s *SessionService) RawInput() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rawInput
}

// UpdateImages 生成工作流回调：合并部分图片结果
func (s *SessionService) UpdateImages(partial map[int]string) {
	s.media.MergeImages(partial)
}

// UpdateVideos 生成工作流回调：合并部分视频结果
func (s *SessionService) UpdateVideos(partial map[int]string) {
	s.media.MergeVideos(partial)
}

// Media 返回会话独占的媒体注册表
func (s *SessionService) Media() *MediaRegistry {
	return s.media
}

// copyDocument 复制文档，条目为原始JSON直接共享（只读）
func copyDocument(doc *models.StoryboardDocument) *models.StoryboardDocument {
	if doc == nil {
		return nil
	}

	docCopy := *doc
	docCopy.StoryboardSequence = make([]models.StoryboardEntry, len(doc.StoryboardSequence))
	copy(docCopy.StoryboardSequence, doc.StoryboardSequence)
	return &docCopy
}
