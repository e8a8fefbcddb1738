// Package apierr はオーケストレーション層で扱うエラー分類を定義します。
package apierr

import (
	"errors"
	"fmt"
)

// Kind エラーの種類
type Kind string

const (
	// KindTimeout 通信が時間内に完了しなかった
	KindTimeout Kind = "timeout"
	// KindUnauthenticated 認証情報が無効または期限切れ
	KindUnauthenticated Kind = "unauthenticated"
	// KindRejected サーバーが 4xx/5xx を返した
	KindRejected Kind = "rejected"
	// KindValidationFailed 送信前の範囲チェックに失敗（通信は行わない）
	KindValidationFailed Kind = "validation_failed"
	// KindBusy 同じ操作がまだ処理中
	KindBusy Kind = "busy"
	// KindNoResult レポート対象の予測結果がない
	KindNoResult Kind = "no_result"
	// KindForbidden 管理者権限がない
	KindForbidden Kind = "forbidden"
)

// TimeoutMessage タイムアウト時にユーザーへ表示する文言
const TimeoutMessage = "Server may be waking up, please try again in a moment"

// Error 分類付きのエラー
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout タイムアウトエラーを生成
func Timeout(err error) *Error {
	return &Error{Kind: KindTimeout, Message: TimeoutMessage, Err: err}
}

// Unauthenticated 認証エラーを生成
func Unauthenticated(message string) *Error {
	if message == "" {
		message = "Session expired, please log in again"
	}
	return &Error{Kind: KindUnauthenticated, Status: 401, Message: message}
}

// Rejected サーバー拒否エラーを生成。message が空の場合は汎用メッセージ
func Rejected(status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("Request failed (status %d)", status)
	}
	return &Error{Kind: KindRejected, Status: status, Message: message}
}

// ValidationFailed 入力検証エラーを生成
func ValidationFailed(message string) *Error {
	return &Error{Kind: KindValidationFailed, Message: message}
}

// Busy 処理中エラーを生成
func Busy(message string) *Error {
	return &Error{Kind: KindBusy, Message: message}
}

// NoResult 予測結果なしエラーを生成
func NoResult() *Error {
	return &Error{Kind: KindNoResult, Message: "Run an analysis before generating a report"}
}

// Forbidden 権限エラーを生成
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Status: 403, Message: message}
}

// KindOf err から分類を取り出す。分類がない場合は空文字
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is err が指定した分類かどうか
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage ユーザーに表示する文言を返す
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong, please try again"
}
