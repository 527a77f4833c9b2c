// internal/services/parser_service_test.go
package services

import (
	"encoding/json"
	"testing"

	apperrors "github.com/Corphon/StoryboardMCP/internal/errors"
)

func TestParseScript_ValidSequence(t *testing.T) {
	parser := NewParserService()

	doc, err := parser.ParseScript(`{"storyboard_sequence":[{"id":1},{"id":2},{"id":3}]}`, "")
	if err != nil {
		t.Fatalf("解析有效脚本不应该失败: %v", err)
	}

	if doc.EntryCount() != 3 {
		t.Fatalf("分镜数量应该是3，实际: %d", doc.EntryCount())
	}

	// 条目顺序必须与输入数组一致
	for i, want := range []int{1, 2, 3} {
		var entry struct {
			ID int `json:"id"`
		}
		if err := json.Unmarshal(doc.StoryboardSequence[i], &entry); err != nil {
			t.Fatalf("解析第%d个条目失败: %v", i, err)
		}
		if entry.ID != want {
			t.Errorf("第%d个条目的id应该是%d，实际: %d", i, want, entry.ID)
		}
	}
}

func TestParseScript_DefaultProjectMeta(t *testing.T) {
	parser := NewParserService()

	doc, err := parser.ParseScript(`{"storyboard_sequence":[{"id":1}]}`, "")
	if err != nil {
		t.Fatalf("缺少project_meta不应该导致失败: %v", err)
	}

	if doc.ProjectMeta.Title != DefaultProjectTitle {
		t.Errorf("标题应该使用默认值 %q，实际: %q", DefaultProjectTitle, doc.ProjectMeta.Title)
	}
	if doc.ProjectMeta.Logline != DefaultProjectLogline {
		t.Errorf("故事梗概应该使用默认值 %q，实际: %q", DefaultProjectLogline, doc.ProjectMeta.Logline)
	}
}

func TestParseScript_PartialProjectMeta(t *testing.T) {
	parser := NewParserService()

	doc, err := parser.ParseScript(`{"project_meta":{"title":"我的项目"},"storyboard_sequence":[]}`, "")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}

	if doc.ProjectMeta.Title != "我的项目" {
		t.Errorf("标题应该保留输入值，实际: %q", doc.ProjectMeta.Title)
	}
	if doc.ProjectMeta.Logline != DefaultProjectLogline {
		t.Errorf("缺失的故事梗概应该使用默认值，实际: %q", doc.ProjectMeta.Logline)
	}
}

func TestParseScript_MarkdownFence(t *testing.T) {
	parser := NewParserService()

	fenced := "```json\n{\"storyboard_sequence\":[{\"id\":1}]}\n```"
	plain := `{"storyboard_sequence":[{"id":1}]}`

	fencedDoc, err := parser.ParseScript(fenced, "")
	if err != nil {
		t.Fatalf("围栏包裹的脚本应该解析成功: %v", err)
	}

	plainDoc, err := parser.ParseScript(plain, "")
	if err != nil {
		t.Fatalf("未包裹的脚本应该解析成功: %v", err)
	}

	if fencedDoc.EntryCount() != plainDoc.EntryCount() {
		t.Errorf("围栏包裹与未包裹的解析结果应该一致: %d vs %d",
			fencedDoc.EntryCount(), plainDoc.EntryCount())
	}
}

func TestParseScript_SyntaxError(t *testing.T) {
	parser := NewParserService()

	_, err := parser.ParseScript("not json", "")
	if err == nil {
		t.Fatal("非JSON文本应该返回错误")
	}
	if !apperrors.IsSyntaxError(err) {
		t.Errorf("应该返回语法错误，实际类型: %v", apperrors.TypeOf(err))
	}
}

func TestParseScript_MissingSequence(t *testing.T) {
	parser := NewParserService()

	cases := []struct {
		name  string
		input string
	}{
		{"缺少字段", `{"project_meta":{"title":"x"}}`},
		{"序列不是数组", `{"storyboard_sequence":"oops"}`},
		{"序列为null", `{"storyboard_sequence":null}`},
		{"顶层不是对象", `[1,2,3]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parser.ParseScript(tc.input, "")
			if err == nil {
				t.Fatal("应该返回错误")
			}
			if !apperrors.IsMissingSequenceError(err) {
				t.Errorf("应该返回缺少序列错误，实际类型: %v", apperrors.TypeOf(err))
			}
		})
	}
}

func TestParseScript_EmptySequence(t *testing.T) {
	parser := NewParserService()

	doc, err := parser.ParseScript(`{"storyboard_sequence":[]}`, "")
	if err != nil {
		t.Fatalf("空序列是有效的: %v", err)
	}
	if doc.EntryCount() != 0 {
		t.Errorf("空序列的分镜数量应该是0，实际: %d", doc.EntryCount())
	}
}

func TestParseScript_AttachReferenceImage(t *testing.T) {
	parser := NewParserService()

	refImage := "data:image/png;base64,AAAA"
	doc, err := parser.ParseScript(`{"storyboard_sequence":[]}`, refImage)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}

	if doc.ReferenceImage != refImage {
		t.Errorf("参考图应该附加到文档，实际: %q", doc.ReferenceImage)
	}

	// 未提供参考图时不应该出现在文档中
	doc2, err := parser.ParseScript(`{"storyboard_sequence":[]}`, "")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if doc2.ReferenceImage != "" {
		t.Errorf("未提供参考图时字段应该为空，实际: %q", doc2.ReferenceImage)
	}
}

func TestParseScript_OpaqueEntries(t *testing.T) {
	parser := NewParserService()

	// 条目内部结构不做任何校验，数组元素可以是任意JSON值
	doc, err := parser.ParseScript(`{"storyboard_sequence":["just a string",42,{"shot":"wide"}]}`, "")
	if err != nil {
		t.Fatalf("任意条目内容都应该透传: %v", err)
	}
	if doc.EntryCount() != 3 {
		t.Errorf("分镜数量应该是3，实际: %d", doc.EntryCount())
	}
}
