// internal/services/media_loader_service.go
package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Corphon/StoryboardMCP/internal/errors"
)

// MediaLoaderService 加载参考图并转换为 data URI 载荷
// 两条路径（本地文件、远程URL）都是单发异步任务，不排队不取消，
// 汇聚到同一个参考图槽位，最后完成的写入生效
type MediaLoaderService struct {
	client   *http.Client
	maxBytes int64
}

// NewMediaLoaderService 创建参考图加载服务
// maxBytes 限制转换后载荷对应的原始字节数，<=0 时使用 20MB
func NewMediaLoaderService(maxBytes int64) *MediaLoaderService {
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}

	return &MediaLoaderService{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxBytes: maxBytes,
	}
}

// LoadFromURL 抓取远程图片并转换为 data URI
// Content-Type 必须以 image/ 开头，否则拒绝加载
func (s *MediaLoaderService) LoadFromURL(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", apperrors.NewValidationError("图片地址必须是 http/https URL", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", apperrors.NewNetworkError("构造图片请求失败", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperrors.NewNetworkError("获取图片失败", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.NewNetworkError(fmt.Sprintf("获取图片失败: HTTP %d", resp.StatusCode), nil)
	}

	contentType := resp.Header.Get("Content-Type")
	if mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]); !strings.HasPrefix(mediaType, "image/") {
		return "", apperrors.NewNotAnImageError(fmt.Sprintf("URL返回的不是图片: %s", contentType))
	}

	data, err := s.readAllCapped(resp.Body)
	if err != nil {
		return "", err
	}

	return encodeDataURI(strings.SplitN(contentType, ";", 2)[0], data), nil
}

// LoadFromUpload 读取用户选择的本地图片文件并转换为 data URI
func (s *MediaLoaderService) LoadFromUpload(fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader == nil {
		return "", apperrors.NewValidationError("缺少上传文件", nil)
	}

	if fileHeader.Size > s.maxBytes {
		return "", apperrors.NewConversionFailedError(
			fmt.Sprintf("图片超过大小限制 (%d 字节)", s.maxBytes), nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", apperrors.NewConversionFailedError("打开上传文件失败", err)
	}
	defer file.Close()

	data, err := s.readAllCapped(file)
	if err != nil {
		return "", err
	}

	// 以内容嗅探为准，文件头声明的类型不可信
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperrors.NewNotAnImageError(fmt.Sprintf("上传的不是图片文件: %s", contentType))
	}

	return encodeDataURI(contentType, data), nil
}

// readAllCapped 读取全部内容，超过大小限制按转换失败处理
func (s *MediaLoaderService) readAllCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, apperrors.NewConversionFailedError("读取图片内容失败", err)
	}

	if int64(len(data)) > s.maxBytes {
		return nil, apperrors.NewConversionFailedError(
			fmt.Sprintf("图片超过大小限制 (%d 字节)", s.maxBytes), nil)
	}

	return data, nil
}

// encodeDataURI 把二进制内容编码为 data URI
func encodeDataURI(contentType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s",
		strings.TrimSpace(contentType),
		base64.StdEncoding.EncodeToString(data))
}
