// internal/services/media_registry.go
package services

import (
	"sync"
)

// MediaRegistry 以分镜条目序号为键的已生成媒体存储
// 图片和视频两个映射相互独立：为第i条生成视频不要求第i条已有图片
// 映射是稀疏的，没有条目表示"尚未生成"
type MediaRegistry struct {
	mu     sync.RWMutex
	images map[int]string
	videos map[int]string
}

// NewMediaRegistry 创建空的媒体注册表
func NewMediaRegistry() *MediaRegistry {
	return &MediaRegistry{
		images: make(map[int]string),
		videos: make(map[int]string),
	}
}

// SetImage 写入指定序号的图片，按键替换（幂等，后写覆盖）
func (r *MediaRegistry) SetImage(index int, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.images[index] = payload
}

// SetVideo 写入指定序号的视频
func (r *MediaRegistry) SetVideo(index int, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.videos[index] = payload
}

// MergeImages 合并部分图片结果
// 保留 partial 中不存在的已有条目，覆盖存在的条目，绝不整体替换
func (r *MediaRegistry) MergeImages(partial map[int]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for index, payload := range partial {
		r.images[index] = payload
	}
}

// MergeVideos 合并部分视频结果
func (r *MediaRegistry) MergeVideos(partial map[int]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for index, payload := range partial {
		r.videos[index] = payload
	}
}

// Images 返回图片映射的快照副本
func (r *MediaRegistry) Images() map[int]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return copyMediaMap(r.images)
}

// Videos 返回视频映射的快照副本
func (r *MediaRegistry) Videos() map[int]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return copyMediaMap(r.videos)
}

// ReplaceAll 原子替换两个映射，仅供备份恢复使用
// 传入 nil 按空映射处理
func (r *MediaRegistry) ReplaceAll(images, videos map[int]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.images = copyMediaMap(images)
	r.videos = copyMediaMap(videos)
}

func copyMediaMap(src map[int]string) map[int]string {
	dst := make(map[int]string, len(src))
	for index, payload := range src {
		dst[index] = payload
	}
	return dst
}
