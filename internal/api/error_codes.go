// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorValidation    = "VALIDATION_ERROR"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"

	// 会话相关错误
	ErrorSessionNotFound = "SESSION_NOT_FOUND"
	ErrorSegmentNotFound = "SEGMENT_NOT_FOUND"

	// 脚本请求错误；生成失败的错误码来自 AppError.Code
	ErrorLanguageUnsupported = "LANGUAGE_UNSUPPORTED"

	// 文件相关错误
	ErrorFileTooLarge = "FILE_TOO_LARGE"
)

const msgInternal = "An internal error occurred"
