// internal/api/handlers.go
package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Corphon/StoryboardMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// Handler 处理API请求
type Handler struct {
	// 核心服务
	SessionService *services.SessionService     // 会话状态服务
	ParserService  *services.ParserService      // 脚本解析服务
	BackupService  *services.BackupService      // 备份编解码服务
	MediaLoader    *services.MediaLoaderService // 参考图加载服务
	Notifications  *NotificationHub             // 通知推送中心
	Response       *ResponseHelper              // 响应助手
}

// NewHandler 创建API处理器
func NewHandler(
	sessionService *services.SessionService,
	parserService *services.ParserService,
	backupService *services.BackupService,
	mediaLoader *services.MediaLoaderService,
	notifications *NotificationHub,
) *Handler {
	return &Handler{
		SessionService: sessionService,
		ParserService:  parserService,
		BackupService:  backupService,
		MediaLoader:    mediaLoader,
		Notifications:  notifications,
		Response:       NewResponseHelper(),
	}
}

// ParseScriptRequest 脚本解析请求
type ParseScriptRequest struct {
	RawText string `json:"raw_text"`
}

// NavigateRequest 视图导航请求
type NavigateRequest struct {
	View string `json:"view"` // "input" 或 "output"
}

// RawInputRequest 原始输入保存请求
type RawInputRequest struct {
	RawText string `json:"raw_text"`
}

// CredentialRequest 凭证更新请求
type CredentialRequest struct {
	APIKey string `json:"api_key"`
}

// ReferenceImageURLRequest 远程参考图加载请求
type ReferenceImageURLRequest struct {
	URL string `json:"url"`
}

// MediaUpdateRequest 生成工作流回调：部分媒体结果
// 键为分镜条目序号（JSON中为十进制字符串）
type MediaUpdateRequest struct {
	Updates map[int]string `json:"updates"`
}

// BackupSaveRequest 服务端备份保存请求
type BackupSaveRequest struct {
	Name string `json:"name"`
}

// ========================================
// 脚本解析
// ========================================

// ParseScript 解析粘贴的脚本文本
// 成功：填充文档并切换到输出视图；失败：保留原视图和文档，记录错误
func (h *Handler) ParseScript(c *gin.Context) {
	var req ParseScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式无效", err.Error())
		return
	}

	// 无论解析成败都逐字保留用户输入
	h.SessionService.SetRawInput(req.RawText)

	doc, err := h.ParserService.ParseScript(req.RawText, h.SessionService.ReferenceImage())
	if err != nil {
		h.SessionService.RecordError(err)
		h.Response.AppError(c, err)
		return
	}

	h.SessionService.ApplyParsedDocument(doc)
	h.Response.Success(c, h.SessionService.Snapshot(), "脚本解析成功")
}

// ========================================
// 会话状态
// ========================================

// GetSession 返回会话状态快照
func (h *Handler) GetSession(c *gin.Context) {
	h.Response.Success(c, h.SessionService.Snapshot())
}

// Navigate 显式视图导航
// 无文档时导航到输出视图是空操作，不是错误
func (h *Handler) Navigate(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式无效", err.Error())
		return
	}

	switch services.ViewMode(req.View) {
	case services.ViewOutput:
		if !h.SessionService.NavigateToOutput() {
			h.Response.Success(c, h.SessionService.Snapshot(), "当前没有文档，保持原视图")
			return
		}
	case services.ViewInput:
		h.SessionService.Reset()
	default:
		h.Response.BadRequest(c, fmt.Sprintf("未知视图: %s", req.View))
		return
	}

	h.Response.Success(c, h.SessionService.Snapshot())
}

// ResetSession 回到输入视图（只清除错误槽，保留工作集）
func (h *Handler) ResetSession(c *gin.Context) {
	h.SessionService.Reset()
	h.Response.Success(c, h.SessionService.Snapshot())
}

// SaveRawInput 逐字保存输入文本
func (h *Handler) SaveRawInput(c *gin.Context) {
	var req RawInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式无效", err.Error())
		return
	}

	h.SessionService.SetRawInput(req.RawText)
	h.Response.Success(c, nil)
}

// DismissError 显式清除错误槽
func (h *Handler) DismissError(c *gin.Context) {
	h.SessionService.DismissError()
	h.Response.Success(c, nil)
}

// UpdateCredential 更新生成服务凭证（空值表示清除）
func (h *Handler) UpdateCredential(c *gin.Context) {
	var req CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式无效", err.Error())
		return
	}

	if err := h.SessionService.SetCredential(req.APIKey); err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorCredentialSaveFailed,
			"保存凭证失败", err.Error())
		return
	}

	h.Response.Success(c, gin.H{
		"has_credential": h.SessionService.Credential() != "",
	})
}

// ========================================
// 参考图
// ========================================

// LoadReferenceImageFromURL 从远程URL加载参考图
// 失败时参考图槽位不变，错误就地返回（不推全局通知）
func (h *Handler) LoadReferenceImageFromURL(c *gin.Context) {
	var req ReferenceImageURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式无效", err.Error())
		return
	}

	dataURI, err := h.MediaLoader.LoadFromURL(c.Request.Context(), req.URL)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.SessionService.SetReferenceImage(dataURI)
	h.Response.Success(c, gin.H{"reference_image": dataURI})
}

// UploadReferenceImage 上传本地参考图文件
func (h *Handler) UploadReferenceImage(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.Response.BadRequest(c, "缺少上传文件", err.Error())
		return
	}

	dataURI, err := h.MediaLoader.LoadFromUpload(fileHeader)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.SessionService.SetReferenceImage(dataURI)
	h.Response.Success(c, gin.H{"reference_image": dataURI})
}

// ClearReferenceImage 清除参考图槽位
func (h *Handler) ClearReferenceImage(c *gin.Context) {
	h.SessionService.SetReferenceImage("")
	h.Response.Success(c, nil)
}

// ========================================
// 媒体注册表（生成工作流回调）
// ========================================

// UpdateImages 合并部分图片生成结果
func (h *Handler) UpdateImages(c *gin.Context) {
	var req MediaUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式无效", err.Error())
		return
	}

	h.SessionService.UpdateImages(req.Updates)
	h.Response.Success(c, gin.H{"generated_images": h.SessionService.Media().Images()})
}

// UpdateVideos 合并部分视频生成结果
func (h *Handler) UpdateVideos(c *gin.Context) {
	var req MediaUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式无效", err.Error())
		return
	}

	h.SessionService.UpdateVideos(req.Updates)
	h.Response.Success(c, gin.H{"video_urls": h.SessionService.Media().Videos()})
}

// ========================================
// 备份
// ========================================

// ExportBackup 把当前工作集导出为可下载的备份文件
func (h *Handler) ExportBackup(c *gin.Context) {
	snapshot := h.SessionService.Snapshot()
	if snapshot.Document == nil {
		h.Response.BadRequest(c, "当前没有可导出的文档")
		return
	}

	content, err := h.BackupService.Export(snapshot.Document, snapshot.Images, snapshot.Videos)
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorBackupExportFailed,
			"导出备份失败", err.Error())
		return
	}

	filename := fmt.Sprintf("storyboard-backup-%s.json", time.Now().Format("20060102-150405"))
	h.Response.FileResponse(c, content, filename, "application/json; charset=utf-8")
}

// ImportBackup 从上传的备份内容整体恢复工作集
// 受信往返格式：不做围栏剥离，不做元信息兜底；校验失败按损坏拒绝
func (h *Handler) ImportBackup(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Response.BadRequest(c, "读取备份内容失败", err.Error())
		return
	}

	blob, err := h.BackupService.Deserialize(string(raw))
	if err != nil {
		h.SessionService.RecordError(err)
		h.Response.AppError(c, err)
		return
	}

	h.SessionService.RestoreBackup(blob)
	h.Response.Success(c, h.SessionService.Snapshot(), "备份恢复成功")
}

// SaveBackupFile 把当前工作集保存为服务端备份文件
func (h *Handler) SaveBackupFile(c *gin.Context) {
	var req BackupSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式无效", err.Error())
		return
	}

	snapshot := h.SessionService.Snapshot()
	if snapshot.Document == nil {
		h.Response.BadRequest(c, "当前没有可保存的文档")
		return
	}

	blob := h.BackupService.Serialize(snapshot.Document, snapshot.Images, snapshot.Videos)
	if err := h.BackupService.SaveToFile(req.Name, blob); err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, nil, "备份已保存")
}

// ListBackupFiles 列出服务端备份文件
func (h *Handler) ListBackupFiles(c *gin.Context) {
	files, err := h.BackupService.ListBackups()
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, files)
}

// RestoreBackupFile 从服务端备份文件恢复工作集
func (h *Handler) RestoreBackupFile(c *gin.Context) {
	name := c.Param("name")

	blob, err := h.BackupService.LoadFromFile(name)
	if err != nil {
		h.SessionService.RecordError(err)
		h.Response.AppError(c, err)
		return
	}

	h.SessionService.RestoreBackup(blob)
	h.Response.Success(c, h.SessionService.Snapshot(), "备份恢复成功")
}

// DeleteBackupFile 删除服务端备份文件
func (h *Handler) DeleteBackupFile(c *gin.Context) {
	if err := h.BackupService.DeleteBackup(c.Param("name")); err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, nil, "备份已删除")
}

// ========================================
// 其他
// ========================================

// NotificationWebSocket 处理通知推送连接
func (h *Handler) NotificationWebSocket(c *gin.Context) {
	h.Notifications.HandleConnection(c)
}

// GetWebSocketStatus 获取通知中心状态（调试用）
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	status := h.Notifications.Status()
	status["timestamp"] = time.Now().Format(time.RFC3339)
	c.JSON(http.StatusOK, status)
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"view":         h.SessionService.View(),
		"has_document": h.SessionService.HasDocument(),
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}
