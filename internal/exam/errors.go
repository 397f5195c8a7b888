package exam

// エラーコード一覧です。
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUnknownKind        = "UNKNOWN_QUESTION_TYPE"
	CodeInvalidOptionIndex = "INVALID_OPTION_INDEX"
	CodeInvalidAnswer      = "INVALID_ANSWER"
	CodeNotEditing         = "NOT_EDITING"
	CodeQuestionNotFound   = "QUESTION_NOT_FOUND"
)

// Error は編集操作が受け付けられなかったことを表します。
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
