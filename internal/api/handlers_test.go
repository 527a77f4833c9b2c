// internal/api/handlers_test.go
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Corphon/StoryboardMCP/internal/config"
	"github.com/Corphon/StoryboardMCP/internal/di"
	"github.com/Corphon/StoryboardMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// setupTestRouter 初始化配置、容器和全部服务，返回待测路由
func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	tempDir := t.TempDir()
	t.Setenv("DATA_DIR", tempDir)
	t.Setenv("BACKUP_DIR", filepath.Join(tempDir, "backups"))
	t.Setenv("LOG_DIR", filepath.Join(tempDir, "logs"))
	t.Setenv("GEMINI_API_KEY", "")

	if err := config.InitConfig(tempDir); err != nil {
		t.Fatalf("初始化配置失败: %v", err)
	}

	container := di.GetContainer()
	container.Clear()

	hub := NewNotificationHub()
	container.Register("notifications", hub)
	container.Register("parser", services.NewParserService())
	container.Register("media_loader", services.NewMediaLoaderService(0))

	backupService, err := services.NewBackupService(filepath.Join(tempDir, "backups"))
	if err != nil {
		t.Fatalf("创建备份服务失败: %v", err)
	}
	container.Register("backup", backupService)

	registry := services.NewMediaRegistry()
	container.Register("media_registry", registry)
	container.Register("session", services.NewSessionService(registry, hub))

	router, err := SetupRouter()
	if err != nil {
		t.Fatalf("设置路由失败: %v", err)
	}
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("序列化请求体失败: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()

	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v\n%s", err, w.Body.String())
	}
	return resp
}

func TestParseScriptEndpoint_Success(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/script/parse", gin.H{
		"raw_text": `{"storyboard_sequence":[{"id":1}]}`,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("解析应该成功，状态码: %d，响应: %s", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	if !resp.Success {
		t.Fatal("响应应该标记成功")
	}

	// 解析成功后会话切换到输出视图
	sessionResp := doJSON(t, router, http.MethodGet, "/api/session", nil)
	var session struct {
		Data struct {
			View     string `json:"view"`
			RawInput string `json:"raw_input"`
			Document *struct {
				ProjectMeta struct {
					Title string `json:"title"`
				} `json:"project_meta"`
			} `json:"document"`
		} `json:"data"`
	}
	if err := json.Unmarshal(sessionResp.Body.Bytes(), &session); err != nil {
		t.Fatalf("解析会话快照失败: %v", err)
	}

	if session.Data.View != "output" {
		t.Errorf("解析成功后视图应该是output，实际: %s", session.Data.View)
	}
	if session.Data.Document == nil || session.Data.Document.ProjectMeta.Title != "Untitled Project" {
		t.Errorf("缺失元信息时标题应该使用默认值: %+v", session.Data.Document)
	}
}

func TestParseScriptEndpoint_FailureKeepsSession(t *testing.T) {
	router := setupTestRouter(t)

	// 先放入一个有效文档
	doJSON(t, router, http.MethodPost, "/api/script/parse", gin.H{
		"raw_text": `{"storyboard_sequence":[{"id":1},{"id":2}]}`,
	})

	// 再发送无效脚本
	w := doJSON(t, router, http.MethodPost, "/api/script/parse", gin.H{
		"raw_text": "not json",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("无效脚本应该返回400，实际: %d", w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != "SCRIPT_SYNTAX_ERROR" {
		t.Errorf("错误代码不正确: %+v", resp.Error)
	}

	// 失败不触碰现有文档，且逐字保留失败的输入
	sessionResp := doJSON(t, router, http.MethodGet, "/api/session", nil)
	var session struct {
		Data struct {
			View      string `json:"view"`
			RawInput  string `json:"raw_input"`
			LastError *struct {
				Code string `json:"code"`
			} `json:"last_error"`
			Document *struct {
				StoryboardSequence []json.RawMessage `json:"storyboard_sequence"`
			} `json:"document"`
		} `json:"data"`
	}
	json.Unmarshal(sessionResp.Body.Bytes(), &session)

	if session.Data.Document == nil || len(session.Data.Document.StoryboardSequence) != 2 {
		t.Error("解析失败不应该改变已有文档")
	}
	if session.Data.RawInput != "not json" {
		t.Errorf("失败的输入应该逐字保留，实际: %q", session.Data.RawInput)
	}
	if session.Data.LastError == nil || session.Data.LastError.Code != "SCRIPT_SYNTAX_ERROR" {
		t.Errorf("错误槽应该持有最近的错误: %+v", session.Data.LastError)
	}
}

func TestNavigateEndpoint_GuardWithoutDocument(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/session/navigate", gin.H{"view": "output"})
	if w.Code != http.StatusOK {
		t.Fatalf("被守卫拦截的导航不是错误，状态码: %d", w.Code)
	}

	sessionResp := doJSON(t, router, http.MethodGet, "/api/session", nil)
	var session struct {
		Data struct {
			View string `json:"view"`
		} `json:"data"`
	}
	json.Unmarshal(sessionResp.Body.Bytes(), &session)

	if session.Data.View != "input" {
		t.Errorf("无文档时视图应该保持input，实际: %s", session.Data.View)
	}
}

func TestMediaEndpoints_MergePartialResults(t *testing.T) {
	router := setupTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/media/images", gin.H{
		"updates": map[string]string{"2": "img2"},
	})
	w := doJSON(t, router, http.MethodPost, "/api/media/images", gin.H{
		"updates": map[string]string{"5": "img5"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("媒体更新失败: %d", w.Code)
	}

	var resp struct {
		Data struct {
			GeneratedImages map[string]string `json:"generated_images"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Data.GeneratedImages["2"] != "img2" || resp.Data.GeneratedImages["5"] != "img5" {
		t.Errorf("部分合并应该保留两次更新的条目: %v", resp.Data.GeneratedImages)
	}
}

func TestBackupEndpoints_ExportImportRoundTrip(t *testing.T) {
	router := setupTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/script/parse", gin.H{
		"raw_text": `{"project_meta":{"title":"备份测试","logline":"x"},"storyboard_sequence":[{"id":1}]}`,
	})
	doJSON(t, router, http.MethodPost, "/api/media/images", gin.H{
		"updates": map[string]string{"0": "img0"},
	})

	// 导出
	exportResp := doJSON(t, router, http.MethodGet, "/api/backup/export", nil)
	if exportResp.Code != http.StatusOK {
		t.Fatalf("导出失败: %d", exportResp.Code)
	}
	exported := exportResp.Body.Bytes()

	// 清掉会话再导入
	doJSON(t, router, http.MethodPost, "/api/script/parse", gin.H{
		"raw_text": `{"storyboard_sequence":[]}`,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/backup/import", bytes.NewReader(exported))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("导入备份失败: %d，响应: %s", w.Code, w.Body.String())
	}

	sessionResp := doJSON(t, router, http.MethodGet, "/api/session", nil)
	var session struct {
		Data struct {
			GeneratedImages map[string]string `json:"generated_images"`
			Document        *struct {
				ProjectMeta struct {
					Title string `json:"title"`
				} `json:"project_meta"`
			} `json:"document"`
		} `json:"data"`
	}
	json.Unmarshal(sessionResp.Body.Bytes(), &session)

	if session.Data.Document == nil || session.Data.Document.ProjectMeta.Title != "备份测试" {
		t.Errorf("导入后文档不正确: %+v", session.Data.Document)
	}
	if session.Data.GeneratedImages["0"] != "img0" {
		t.Errorf("导入后图片映射不正确: %v", session.Data.GeneratedImages)
	}
}

func TestBackupImport_InvalidRejected(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/backup/import",
		bytes.NewReader([]byte(`{"data":{"project_meta":{}}}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("无效备份应该返回400，实际: %d", w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != "BACKUP_INVALID" {
		t.Errorf("错误代码不正确: %+v", resp.Error)
	}
}

func TestCredentialEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPut, "/api/session/credential", gin.H{"api_key": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("更新凭证失败: %d", w.Code)
	}

	var resp struct {
		Data struct {
			HasCredential bool `json:"has_credential"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Data.HasCredential {
		t.Error("设置后应该报告持有凭证")
	}

	// 会话快照只暴露凭证存在性，不暴露凭证本身
	sessionResp := doJSON(t, router, http.MethodGet, "/api/session", nil)
	if bytes.Contains(sessionResp.Body.Bytes(), []byte("secret")) {
		t.Error("会话快照不应该泄露凭证内容")
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("健康检查失败: %d", w.Code)
	}
}
