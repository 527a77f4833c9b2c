// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 脚本解析错误类型
	ErrorTypeSyntax          ErrorType = "syntax_error"
	ErrorTypeMissingSequence ErrorType = "missing_sequence"

	// 备份恢复错误类型
	ErrorTypeInvalidBackup ErrorType = "invalid_backup"

	// 参考图加载错误类型
	ErrorTypeNetwork          ErrorType = "network_error"
	ErrorTypeNotAnImage       ErrorType = "not_an_image"
	ErrorTypeConversionFailed ErrorType = "conversion_failed"

	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
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

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewSyntaxError 创建JSON语法错误（脚本文本无法解析）
func NewSyntaxError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeSyntax, message, originalError)
}

// NewMissingSequenceError 创建结构校验错误（缺少storyboard_sequence数组）
func NewMissingSequenceError(message string) *AppError {
	return NewAppError(ErrorTypeMissingSequence, message, nil)
}

// NewInvalidBackupError 创建备份文件无效错误
func NewInvalidBackupError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeInvalidBackup, message, originalError)
}

// NewNetworkError 创建网络加载错误
func NewNetworkError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNetwork, message, originalError)
}

// NewNotAnImageError 创建内容类型错误（URL返回的不是图片）
func NewNotAnImageError(message string) *AppError {
	return NewAppError(ErrorTypeNotAnImage, message, nil)
}

// NewConversionFailedError 创建载荷转换错误
func NewConversionFailedError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConversionFailed, message, originalError)
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// IsSyntaxError 检查是否为JSON语法错误
func IsSyntaxError(err error) bool {
	return hasType(err, ErrorTypeSyntax)
}

// IsMissingSequenceError 检查是否为缺少序列错误
func IsMissingSequenceError(err error) bool {
	return hasType(err, ErrorTypeMissingSequence)
}

// IsInvalidBackupError 检查是否为备份无效错误
func IsInvalidBackupError(err error) bool {
	return hasType(err, ErrorTypeInvalidBackup)
}

// IsNetworkError 检查是否为网络错误
func IsNetworkError(err error) bool {
	return hasType(err, ErrorTypeNetwork)
}

// IsNotAnImageError 检查是否为内容类型错误
func IsNotAnImageError(err error) bool {
	return hasType(err, ErrorTypeNotAnImage)
}

// IsConversionFailedError 检查是否为转换失败错误
func IsConversionFailedError(err error) bool {
	return hasType(err, ErrorTypeConversionFailed)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

func hasType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// TypeOf 返回错误的类型，非 AppError 返回通用处理错误类型
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ErrorTypeError
}

// CodeOf 返回错误的用户友好代码
func CodeOf(err error) string {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Code
	}
	return "UNKNOWN_ERROR"
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeSyntax:
		return "SCRIPT_SYNTAX_ERROR"
	case ErrorTypeMissingSequence:
		return "SCRIPT_MISSING_SEQUENCE"
	case ErrorTypeInvalidBackup:
		return "BACKUP_INVALID"
	case ErrorTypeNetwork:
		return "MEDIA_NETWORK_ERROR"
	case ErrorTypeNotAnImage:
		return "MEDIA_NOT_AN_IMAGE"
	case ErrorTypeConversionFailed:
		return "MEDIA_CONVERSION_FAILED"
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	default:
		return "UNKNOWN_ERROR"
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

	// 否则创建新的 AppError
	return NewAppError(errType, message, err)
}
