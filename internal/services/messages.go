// internal/services/messages.go
package services

import (
	"errors"
	"fmt"

	apperrors "github.com/Corphon/ShortsStudio/internal/errors"
)

// 生成失败时展示给用户的提示，不包含后端细节
const (
	msgScriptFailed       = "Failed to generate script. Please try again."
	msgImageFailed        = "Failed to generate image. Please try again."
	msgSegmentImageFailed = "Failed to generate image for \"%s\". Please try again."
	msgEditFailed         = "Failed to edit image. Please try again."
	msgUnexpected         = "Something went wrong. Please try again."
)

// UserMessage 把错误转换为可以直接展示的提示
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, apperrors.ErrScriptGeneration):
		return msgScriptFailed
	case errors.Is(err, apperrors.ErrImageGeneration):
		return msgImageFailed
	case errors.Is(err, apperrors.ErrImageEditing):
		return msgEditFailed
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type != apperrors.ErrorTypeError {
		return appErr.Message
	}
	return msgUnexpected
}

// SegmentImageMessage 段落配图失败的提示
func SegmentImageMessage(label string, err error) string {
	if label != "" && errors.Is(err, apperrors.ErrImageGeneration) {
		return fmt.Sprintf(msgSegmentImageFailed, label)
	}
	return UserMessage(err)
}
