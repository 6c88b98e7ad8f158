// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は抽出した商品テキスト（説明文・箇条書き等）から
// マークアップを除去する。スクレイプ対象のHTMLは信頼できないため、
// 保存前にbluemondayの全タグ除去ポリシーを通す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は抽出テキストのサニタイズ機能のインターフェースを定義する。
// 商品レコードの自由テキストフィールドの保存前に使用される。
type TextSanitizerService interface {
	// Sanitize はテキストからすべてのHTMLタグを除去したプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからすべてのHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyはエンティティをエスケープして返すため、タグ除去後に
// アンエスケープして元のプレーンテキスト表現に戻す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
