package jikan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/minnego/internal/retry"
)

// ErrTimeout は上流呼び出しがタイムアウトしたことを示す。
// errors.Is(err, ErrTimeout) で判定できる。
var ErrTimeout = errors.New("jikan: request timed out")

// ErrInvalidQuery はクエリのパラメータが上流で受け付けられない値であることを示す。
var ErrInvalidQuery = errors.New("jikan: invalid query")

// ErrPageOutOfRange は要求したページが一覧の最終ページより後ろであることを示す。
var ErrPageOutOfRange = errors.New("jikan: page out of range")

// APIError は上流APIが2xx以外のステータスを返したことを表す。
type APIError struct {
	Endpoint   string
	Status     int
	StatusText string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("jikan %s: status %d %s", e.Endpoint, e.Status, e.StatusText)
}

// NotFound は対象リソースが存在しない応答かを返す。
func (e *APIError) NotFound() bool {
	return e.Status == 404
}

// TimeoutError はタイムアウトまたは中断された呼び出しを表す。
type TimeoutError struct {
	Endpoint string
	Timeout  time.Duration
}

// Error はerrorインターフェースを実装する。
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("jikan %s: no response within %s", e.Endpoint, e.Timeout)
}

// Is はErrTimeoutとの比較を可能にする。
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// SchemaError はレスポンスが壊れているか想定外の形状であることを表す。
type SchemaError struct {
	Endpoint string
	Reason   string
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jikan %s: unexpected response: %s: %v", e.Endpoint, e.Reason, e.Err)
	}
	return fmt.Sprintf("jikan %s: unexpected response: %s", e.Endpoint, e.Reason)
}

// Unwrap は元のデコードエラーを返す。
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsRetryable は上流エラーが時間をおけば回復し得るかを判定する。
// タイムアウト・通信エラー・429/5xxはリトライ対象、4xxやスキーマ不一致は対象外。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidQuery) || errors.Is(err, ErrPageOutOfRange) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return retry.IsRetryableStatus(apiErr.Status)
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return false
	}
	return true
}

// Message はエラーを画面表示用の1行の文字列に変換する。
func Message(err error) string {
	var apiErr *APIError
	var schemaErr *SchemaError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "The request timed out. Please try again."
	case errors.Is(err, ErrPageOutOfRange):
		return "That page does not exist."
	case errors.As(err, &apiErr):
		if apiErr.Status == 429 {
			return "Too many requests to the anime database. Please wait a moment."
		}
		return fmt.Sprintf("Failed to load data (%d %s).", apiErr.Status, apiErr.StatusText)
	case errors.As(err, &schemaErr):
		return "Received an unexpected response from the anime database."
	default:
		return "Failed to load data. Please check your connection."
	}
}
