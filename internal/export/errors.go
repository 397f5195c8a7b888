package export

import "fmt"

const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeJobNotFound     = "JOB_RESULT_NOT_FOUND"
	CodeInternal        = "INTERNAL_ERROR"
	CodeRequestCanceled = "REQUEST_CANCELED"
)

// Error はエクスポート処理で発生したエラーです。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
