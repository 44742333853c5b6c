// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConflict   ErrorType = "conflict"

	// 生成相关错误类型
	ErrorTypeGeneration ErrorType = "generation_error"
	ErrorTypeUpstream   ErrorType = "upstream_error"
)

// 面向用户的简短错误，后端细节放在 AppError.Err 中
var (
	ErrScriptGeneration       = errors.New("script generation failed")
	ErrInvalidScriptStructure = errors.New("invalid script structure")
	ErrImageGeneration        = errors.New("image generation failed")
	ErrImageEditing           = errors.New("image editing failed")

	ErrSessionNotFound = NewNotFoundError("session not found", nil)
	ErrSegmentNotFound = NewNotFoundError("segment not found", nil)
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码

	sentinel error // 生成错误对应的 ErrXxx，供 errors.Is 匹配
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 让生成错误可以用 errors.Is 与对应的 ErrXxx 比较
func (e *AppError) Is(target error) bool {
	return e.sentinel != nil && e.sentinel == target
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewConflictError 创建冲突错误
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewGenerationError 把后端失败包装成用户可见的生成错误
// sentinel 为上面的 ErrXxx 之一，cause 为原始错误，可以为 nil
func NewGenerationError(sentinel, cause error) *AppError {
	return &AppError{
		Type:     ErrorTypeGeneration,
		Message:  sentinel.Error(),
		Err:      cause,
		Code:     generationCode(sentinel),
		sentinel: sentinel,
	}
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsConflictError 检查是否为冲突错误
func IsConflictError(err error) bool {
	return hasType(err, ErrorTypeConflict)
}

// IsGenerationError 检查是否为生成错误
func IsGenerationError(err error) bool {
	return hasType(err, ErrorTypeGeneration)
}

func hasType(err error, t ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == t
	}
	return false
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeGeneration:
		return "GENERATION_FAILED"
	case ErrorTypeUpstream:
		return "UPSTREAM_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

func generationCode(sentinel error) string {
	switch sentinel {
	case ErrScriptGeneration:
		return "SCRIPT_GENERATION_FAILED"
	case ErrImageGeneration:
		return "IMAGE_GENERATION_FAILED"
	case ErrImageEditing:
		return "IMAGE_EDITING_FAILED"
	default:
		return generateErrorCode(ErrorTypeGeneration)
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
