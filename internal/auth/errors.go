package auth

import (
	"errors"
	"net/http"
)

// 認証エラーのコード一覧です。
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeEmailInUse         = "EMAIL_ALREADY_IN_USE"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodePasswordMismatch   = "PASSWORD_MISMATCH"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
)

// Error は Identity Gateway が返す利用者向けエラーです。
// Message はそのまま画面に表示できる文言です。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// IsAuthError は err が認証エラーかどうかを返します。
func IsAuthError(err error) bool {
	var authErr *Error
	return errors.As(err, &authErr)
}

func statusForCode(code string) int {
	switch code {
	case CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeEmailInUse:
		return http.StatusConflict
	case CodeTooManyAttempts:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}
