// internal/services/parser_service.go
package services

import (
	"encoding/json"
	"strings"

	apperrors "github.com/Corphon/StoryboardMCP/internal/errors"
	"github.com/Corphon/StoryboardMCP/internal/models"
)

// 缺失 project_meta 时合成的占位元信息
// 上游的提示词生成偶尔会漏掉该字段，这是兜底而不是错误
const (
	DefaultProjectTitle   = "Untitled Project"
	DefaultProjectLogline = "No logline provided."
)

// ParserService 将用户粘贴的脚本文本解析为分镜文档
// 纯转换，无副作用；错误只返回不抛出，调用方保留用户原文以便修正重试
type ParserService struct{}

// NewParserService 创建脚本解析服务
func NewParserService() *ParserService {
	return &ParserService{}
}

// ParseScript 解析脚本文本，可选附带参考图（data URI）
// 1. 去除LLM输出常见的Markdown代码围栏
// 2. 解析JSON，失败返回语法错误
// 3. 校验 storyboard_sequence 必须是数组（唯一的硬性结构要求）
// 4. project_meta 缺失时合成默认值
// 5. 附加参考图
func (s *ParserService) ParseScript(rawText string, referenceImage string) (*models.StoryboardDocument, error) {
	payload := stripMarkdownFences(rawText)

	var root map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &root); err != nil {
		if json.Valid([]byte(payload)) {
			// 合法JSON但顶层不是对象，不可能携带 storyboard_sequence
			return nil, apperrors.NewMissingSequenceError("脚本缺少 storyboard_sequence 数组")
		}
		return nil, apperrors.NewSyntaxError("脚本不是有效的JSON", err)
	}

	seqRaw, ok := root["storyboard_sequence"]
	if !ok {
		return nil, apperrors.NewMissingSequenceError("脚本缺少 storyboard_sequence 数组")
	}

	var sequence []models.StoryboardEntry
	if err := json.Unmarshal(seqRaw, &sequence); err != nil {
		return nil, apperrors.NewMissingSequenceError("storyboard_sequence 必须是数组")
	}
	if sequence == nil {
		// JSON null 不是序列
		return nil, apperrors.NewMissingSequenceError("storyboard_sequence 必须是数组")
	}

	doc := &models.StoryboardDocument{
		ProjectMeta:        parseProjectMeta(root["project_meta"]),
		StoryboardSequence: sequence,
	}

	if referenceImage != "" {
		doc.ReferenceImage = referenceImage
	}

	return doc, nil
}

// parseProjectMeta 解析项目元信息，缺失或不完整时逐字段兜底
func parseProjectMeta(raw json.RawMessage) models.ProjectMeta {
	meta := models.ProjectMeta{}

	if len(raw) > 0 {
		// 解析失败按缺失处理
		json.Unmarshal(raw, &meta)
	}

	if meta.Title == "" {
		meta.Title = DefaultProjectTitle
	}
	if meta.Logline == "" {
		meta.Logline = DefaultProjectLogline
	}

	return meta
}

// stripMarkdownFences 去除文本中的JSON代码围栏标记
// LLM格式化的回复常把JSON包在 ```json ... ``` 中
func stripMarkdownFences(raw string) string {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
