// internal/services/backup_service.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "github.com/Corphon/StoryboardMCP/internal/errors"
	"github.com/Corphon/StoryboardMCP/internal/models"
	"github.com/Corphon/StoryboardMCP/internal/storage"
	"github.com/Corphon/StoryboardMCP/internal/utils"
)

// BackupService 负责工作集（文档+媒体映射）与备份文件之间的编解码
// 导入路径不做围栏剥离和元信息兜底：备份是serialize产出的受信格式，
// 任何偏差按损坏处理而不是可恢复的格式噪音
type BackupService struct {
	storage *storage.FileStorage
}

// NewBackupService 创建备份服务，backupDir 存放服务端备份文件
func NewBackupService(backupDir string) (*BackupService, error) {
	fileStorage, err := storage.NewFileStorage(backupDir)
	if err != nil {
		return nil, fmt.Errorf("初始化备份存储失败: %w", err)
	}

	return &BackupService{storage: fileStorage}, nil
}

// Serialize 把当前工作集打包为备份对象
// 全函数、永不失败：任何可序列化状态原样接受；媒体映射取副本
func (s *BackupService) Serialize(doc *models.StoryboardDocument, images, videos map[int]string) *models.BackupBlob {
	return &models.BackupBlob{
		Data:            doc,
		GeneratedImages: copyMediaMap(images),
		VideoUrls:       copyMediaMap(videos),
	}
}

// Deserialize 解析备份文本
// 校验 data.storyboard_sequence 必须存在且为数组；
// generatedImages / videoUrls 可缺失（兼容媒体跟踪之前的旧备份），缺省为空映射
func (s *BackupService) Deserialize(raw string) (*models.BackupBlob, error) {
	var blob models.BackupBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return nil, apperrors.NewInvalidBackupError("备份文件无法解析", err)
	}

	if blob.Data == nil || blob.Data.StoryboardSequence == nil {
		return nil, apperrors.NewInvalidBackupError("备份文件缺少 data.storyboard_sequence 数组", nil)
	}

	if blob.GeneratedImages == nil {
		blob.GeneratedImages = make(map[int]string)
	}
	if blob.VideoUrls == nil {
		blob.VideoUrls = make(map[int]string)
	}

	return &blob, nil
}

// Export 序列化为可下载的JSON字节
func (s *BackupService) Export(doc *models.StoryboardDocument, images, videos map[int]string) ([]byte, error) {
	blob := s.Serialize(doc, images, videos)

	content, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return nil, apperrors.NewProcessingError("序列化备份失败", err)
	}

	return content, nil
}

// SaveToFile 把备份写入服务端备份目录
func (s *BackupService) SaveToFile(name string, blob *models.BackupBlob) error {
	filename, err := normalizeBackupName(name)
	if err != nil {
		return err
	}

	if err := s.storage.SaveJSONFile(filename, blob); err != nil {
		return apperrors.NewProcessingError("保存备份文件失败", err)
	}

	utils.GetLogger().Info("backup saved", map[string]interface{}{
		"file":    filename,
		"entries": blob.Data.EntryCount(),
	})
	return nil
}

// LoadFromFile 从服务端备份目录读取并校验备份
func (s *BackupService) LoadFromFile(name string) (*models.BackupBlob, error) {
	filename, err := normalizeBackupName(name)
	if err != nil {
		return nil, err
	}

	content, err := s.storage.LoadTextFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("备份文件不存在: %s", filename), err)
		}
		return nil, apperrors.NewProcessingError("读取备份文件失败", err)
	}

	return s.Deserialize(string(content))
}

// ListBackups 列出服务端备份文件
func (s *BackupService) ListBackups() ([]models.BackupFileInfo, error) {
	files, err := s.storage.ListFiles(".json")
	if err != nil {
		return nil, apperrors.NewProcessingError("列出备份文件失败", err)
	}

	infos := make([]models.BackupFileInfo, 0, len(files))
	for _, file := range files {
		infos = append(infos, models.BackupFileInfo{
			Name:       file.Name,
			Size:       file.Size,
			ModifiedAt: file.ModifiedAt.Format(time.RFC3339),
		})
	}

	return infos, nil
}

// DeleteBackup 删除服务端备份文件
func (s *BackupService) DeleteBackup(name string) error {
	filename, err := normalizeBackupName(name)
	if err != nil {
		return err
	}

	if !s.storage.FileExists(filename) {
		return apperrors.NewNotFoundError(fmt.Sprintf("备份文件不存在: %s", filename), nil)
	}

	if err := s.storage.DeleteFile(filename); err != nil {
		return apperrors.NewProcessingError("删除备份文件失败", err)
	}

	utils.GetLogger().Info("backup deleted", map[string]interface{}{"file": filename})
	return nil
}

// normalizeBackupName 校验并规范备份文件名，拒绝路径穿越
func normalizeBackupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.NewValidationError("备份名称不能为空", nil)
	}

	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", apperrors.NewValidationError("备份名称包含非法字符", nil)
	}

	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}

	return name, nil
}
