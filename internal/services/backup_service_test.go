// internal/services/backup_service_test.go
package services

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"

	apperrors "github.com/Corphon/StoryboardMCP/internal/errors"
	"github.com/Corphon/StoryboardMCP/internal/models"
)

// 测试用备份服务，备份目录指向临时目录
func newTestBackupService(t *testing.T) *BackupService {
	t.Helper()

	service, err := NewBackupService(t.TempDir())
	if err != nil {
		t.Fatalf("创建备份服务失败: %v", err)
	}
	return service
}

func testDocument() *models.StoryboardDocument {
	return &models.StoryboardDocument{
		ProjectMeta: models.ProjectMeta{
			Title:   "测试项目",
			Logline: "一句话梗概",
		},
		StoryboardSequence: []models.StoryboardEntry{
			json.RawMessage(`{"id":1,"prompt":"opening shot"}`),
			json.RawMessage(`{"id":2,"prompt":"closeup"}`),
		},
	}
}

func TestBackup_RoundTrip(t *testing.T) {
	service := newTestBackupService(t)

	doc := testDocument()
	images := map[int]string{0: "data:image/png;base64,AAAA"}
	videos := map[int]string{1: "https://example.com/clip.mp4"}

	content, err := service.Export(doc, images, videos)
	if err != nil {
		t.Fatalf("导出备份失败: %v", err)
	}

	blob, err := service.Deserialize(string(content))
	if err != nil {
		t.Fatalf("恢复备份失败: %v", err)
	}

	// 媒体映射必须逐项还原
	if !reflect.DeepEqual(blob.GeneratedImages, images) {
		t.Errorf("图片映射往返不一致: want %v, got %v", images, blob.GeneratedImages)
	}
	if !reflect.DeepEqual(blob.VideoUrls, videos) {
		t.Errorf("视频映射往返不一致: want %v, got %v", videos, blob.VideoUrls)
	}

	// 文档语义必须无损：紧凑序列化后逐字节相等
	wantJSON, _ := json.Marshal(doc)
	gotJSON, _ := json.Marshal(blob.Data)
	if !bytes.Equal(wantJSON, gotJSON) {
		t.Errorf("文档往返不一致:\nwant %s\ngot  %s", wantJSON, gotJSON)
	}
}

func TestBackup_SerializeCopiesMaps(t *testing.T) {
	service := newTestBackupService(t)

	images := map[int]string{0: "img"}
	blob := service.Serialize(testDocument(), images, nil)

	// 序列化后修改原映射不应该影响备份对象
	images[0] = "mutated"
	if blob.GeneratedImages[0] != "img" {
		t.Errorf("Serialize应该取映射副本，实际: %q", blob.GeneratedImages[0])
	}

	if blob.VideoUrls == nil {
		t.Error("nil视频映射应该按空映射处理")
	}
}

func TestBackup_DeserializeLegacyWithoutMedia(t *testing.T) {
	service := newTestBackupService(t)

	// 媒体跟踪之前创建的旧备份没有 generatedImages / videoUrls
	blob, err := service.Deserialize(`{"data":{"storyboard_sequence":[]}}`)
	if err != nil {
		t.Fatalf("旧格式备份应该兼容: %v", err)
	}

	if blob.GeneratedImages == nil || len(blob.GeneratedImages) != 0 {
		t.Errorf("缺失的图片映射应该缺省为空: %v", blob.GeneratedImages)
	}
	if blob.VideoUrls == nil || len(blob.VideoUrls) != 0 {
		t.Errorf("缺失的视频映射应该缺省为空: %v", blob.VideoUrls)
	}
}

func TestBackup_DeserializeInvalid(t *testing.T) {
	service := newTestBackupService(t)

	cases := []struct {
		name string
		raw  string
	}{
		{"非JSON", "not a backup"},
		{"缺少data", `{"generatedImages":{}}`},
		{"缺少storyboard_sequence", `{"data":{"project_meta":{"title":"x"}}}`},
		{"序列不是数组", `{"data":{"storyboard_sequence":{"oops":true}}}`},
		// 导入路径不做围栏剥离：备份是受信往返格式
		{"围栏包裹", "```json\n{\"data\":{\"storyboard_sequence\":[]}}\n```"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Deserialize(tc.raw)
			if err == nil {
				t.Fatal("无效备份应该被拒绝")
			}
			if !apperrors.IsInvalidBackupError(err) {
				t.Errorf("应该返回备份无效错误，实际类型: %v", apperrors.TypeOf(err))
			}
		})
	}
}

func TestBackup_SaveLoadFile(t *testing.T) {
	service := newTestBackupService(t)

	blob := service.Serialize(testDocument(), map[int]string{0: "img"}, map[int]string{0: "vid"})

	if err := service.SaveToFile("my-project", blob); err != nil {
		t.Fatalf("保存备份文件失败: %v", err)
	}

	loaded, err := service.LoadFromFile("my-project")
	if err != nil {
		t.Fatalf("读取备份文件失败: %v", err)
	}

	if !reflect.DeepEqual(loaded.GeneratedImages, blob.GeneratedImages) {
		t.Errorf("文件往返后图片映射不一致: %v", loaded.GeneratedImages)
	}

	files, err := service.ListBackups()
	if err != nil {
		t.Fatalf("列出备份失败: %v", err)
	}
	if len(files) != 1 || files[0].Name != "my-project.json" {
		t.Errorf("备份列表不正确: %+v", files)
	}

	if err := service.DeleteBackup("my-project"); err != nil {
		t.Fatalf("删除备份失败: %v", err)
	}

	if _, err := service.LoadFromFile("my-project"); !apperrors.IsNotFoundError(err) {
		t.Errorf("删除后读取应该返回未找到错误，实际: %v", err)
	}
}

func TestBackup_RejectsBadNames(t *testing.T) {
	service := newTestBackupService(t)
	blob := service.Serialize(testDocument(), nil, nil)

	for _, name := range []string{"", "  ", "../escape", "a/b", `a\b`} {
		if err := service.SaveToFile(name, blob); err == nil {
			t.Errorf("非法备份名 %q 应该被拒绝", name)
		}
	}
}
