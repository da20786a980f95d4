package admission

import "net/http"

// 却下理由のコード一覧。HTTPステータスへの対応はHTTPStatusが決めます。
const (
	CodeRateLimited     = "RATE_LIMITED"
	CodeToolNotFound    = "TOOL_NOT_FOUND"
	CodeNoFiles         = "NO_FILES"
	CodeTooManyFiles    = "TOO_MANY_FILES"
	CodeEmptyFile       = "EMPTY_FILE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeUnsupportedType = "UNSUPPORTED_TYPE"
	CodeMalwareDetected = "MALWARE_DETECTED"
	CodeScanUnavailable = "SCAN_UNAVAILABLE"
)

// Error は却下理由を表すエラーです。同期的にクライアントへ全文が返されます。
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error はエラーメッセージを返します。
func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// HTTPStatus は却下コードに対応するHTTPステータスを返します。
func HTTPStatus(code string) int {
	switch code {
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeToolNotFound:
		return http.StatusNotFound
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeUnsupportedType:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}
