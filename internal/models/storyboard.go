// internal/models/storyboard.go
package models

import "encoding/json"

// ProjectMeta 项目元信息
type ProjectMeta struct {
	Title   string `json:"title"`
	Logline string `json:"logline"`
}

// StoryboardEntry 分镜序列中的单个条目
// 核心层不解释条目内部字段（提示词、镜头参数等），只按序号定位，
// 因此以原始JSON形式透传，保证导出备份时逐字节还原
type StoryboardEntry = json.RawMessage

// StoryboardDocument 校验通过后的分镜文档
// 不变式：storyboard_sequence 必须是有效序列（可以为空），project_meta 始终存在
type StoryboardDocument struct {
	ProjectMeta        ProjectMeta       `json:"project_meta"`
	StoryboardSequence []StoryboardEntry `json:"storyboard_sequence"`
	ReferenceImage     string            `json:"reference_image,omitempty"` // data URI
}

// EntryCount 返回分镜条目数量
func (d *StoryboardDocument) EntryCount() int {
	if d == nil {
		return 0
	}
	return len(d.StoryboardSequence)
}

// BackupBlob 备份文件的外部形态：文档 + 两个已生成媒体映射
// 媒体映射以分镜条目序号为键，序列化时键为十进制字符串
type BackupBlob struct {
	Data            *StoryboardDocument `json:"data"`
	GeneratedImages map[int]string      `json:"generatedImages"`
	VideoUrls       map[int]string      `json:"videoUrls"`
}

// BackupFileInfo 服务端备份文件的列表项
type BackupFileInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}
