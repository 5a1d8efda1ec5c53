package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は上流やユーザーから受け取ったHTML混じりの文字列をプレーンテキスト化する。
// 作品あらすじ、レビュー本文、ニュース概要、プロフィールのbioに使用する。
// bluemondayのポリシーはスレッドセーフなので1つのインスタンスを共有してよい。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのタグを除去するポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// PlainText はタグを除去し、エンティティを復元し、連続する空白を1つにまとめる。
// 改行は段落の区切りとして残す。
func (s *TextSanitizer) PlainText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(raw))

	lines := strings.Split(strings.ReplaceAll(stripped, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Summary はPlainTextの結果をmaxRunes文字以内に切り詰める。
// 切り詰めた場合は末尾に"…"を付ける。
func (s *TextSanitizer) Summary(raw string, maxRunes int) string {
	text := strings.Join(strings.Fields(s.PlainText(raw)), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
