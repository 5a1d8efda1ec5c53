// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidParameter = "INVALID_PARAMETER"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUpstreamError    = "UPSTREAM_ERROR"
	ErrCodeUpstreamTimeout  = "UPSTREAM_TIMEOUT"
	ErrCodeUpstreamSchema   = "UPSTREAM_SCHEMA"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInvalidURL       = "INVALID_URL"
)

// NewInvalidParameterError は不正なリクエストパラメータのエラーを生成する。
func NewInvalidParameterError(name, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParameter,
		Message:  fmt.Sprintf("invalid parameter %q: %s", name, reason),
		Category: "validation",
		Action:   "Check the request parameters and try again.",
	}
}

// NewNotFoundError は対象が見つからない場合のエラーを生成する。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s not found", resource),
		Category: "upstream",
		Action:   "Check the ID and try again.",
	}
}

// NewUpstreamError は上流APIが異常ステータスを返した場合のエラーを生成する。
func NewUpstreamError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamError,
		Message:  fmt.Sprintf("failed to load data: %s", reason),
		Category: "upstream",
		Action:   "Try again.",
	}
}

// NewUpstreamTimeoutError は上流APIがタイムアウトした場合のエラーを生成する。
func NewUpstreamTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamTimeout,
		Message:  "the anime database did not respond in time",
		Category: "upstream",
		Action:   "Wait a moment and try again.",
	}
}

// NewUpstreamSchemaError は上流レスポンスの形式が想定外だった場合のエラーを生成する。
func NewUpstreamSchemaError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamSchema,
		Message:  "the anime database returned an unexpected response",
		Category: "upstream",
		Action:   "Try again later.",
	}
}

// NewUnauthorizedError は未ログイン時のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "login required",
		Category: "auth",
		Action:   "Log in and try again.",
	}
}

// NewInvalidURLError は画像URLなどが許可されない場合のエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("invalid URL: %s", reason),
		Category: "validation",
		Action:   "Use a relative path or a public https URL.",
	}
}
