package render

import "fmt"

// CodeRenderFailed は PDF の生成に失敗したことを表します。
const CodeRenderFailed = "RENDER_FAILED"

// Error は出力処理のエラーです。
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

func newError(message string, err error) *Error {
	return &Error{Code: CodeRenderFailed, Message: message, Err: err}
}
