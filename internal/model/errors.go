// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, scrape, store, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeKeywordEmpty       = "KEYWORD_EMPTY"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeBatchNotFound      = "BATCH_NOT_FOUND"
	ErrCodeScrapeFailed       = "SCRAPE_FAILED"
	ErrCodeWriteFailed        = "WRITE_FAILED"
	ErrCodeInsightUnavailable = "INSIGHT_UNAVAILABLE"
)

// NewInvalidRequestError はリクエスト解析失敗のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの解析に失敗しました: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewKeywordEmptyError は検索キーワード未指定のエラーを生成する。
func NewKeywordEmptyError() *APIError {
	return &APIError{
		Code:     ErrCodeKeywordEmpty,
		Message:  "検索キーワードが指定されていません。",
		Category: "validation",
		Action:   "search_termsに1件以上のキーワードを指定してください。",
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", productID),
		Category: "store",
		Action:   "商品IDを確認してください。",
	}
}

// NewBatchNotFoundError はクエリバッチ未検出エラーを生成する。
func NewBatchNotFoundError(keyword string) *APIError {
	return &APIError{
		Code:     ErrCodeBatchNotFound,
		Message:  fmt.Sprintf("キーワード '%s' の取り込み履歴が見つかりません。", keyword),
		Category: "store",
		Action:   "先に /api/scrape で取り込みを実行してください。",
	}
}

// NewScrapeFailedError はスクレイプ失敗のエラーを生成する。
func NewScrapeFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeScrapeFailed,
		Message:  fmt.Sprintf("スクレイプに失敗しました: %s", reason),
		Category: "scrape",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewWriteFailedError は永続化失敗のエラーを生成する。
func NewWriteFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeWriteFailed,
		Message:  fmt.Sprintf("データベースへの書き込みに失敗しました: %s", reason),
		Category: "store",
		Action:   "データベース接続を確認してください。",
	}
}

// NewInsightUnavailableError はAIインサイト利用不可のエラーを生成する。
func NewInsightUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeInsightUnavailable,
		Message:  "AIインサイト機能が設定されていません。",
		Category: "system",
		Action:   "GEMINI_API_KEYを設定してください。",
	}
}
