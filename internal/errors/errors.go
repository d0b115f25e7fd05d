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
	ErrorTypeValidation   ErrorType = "validation_error"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeError        ErrorType = "processing_error"
	ErrorTypeUnauthorized ErrorType = "unauthorized"

	// 推理网关错误类型
	// 区分"远端不可达"、"远端可达但返回失败"、"响应结构非法"与"超时"，
	// 编排器的降级策略依赖这种区分
	ErrorTypeUnreachable ErrorType = "inference_unreachable"
	ErrorTypeRemote      ErrorType = "inference_remote_error"
	ErrorTypeProtocol    ErrorType = "protocol_violation"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypePersistence ErrorType = "persistence_failure"
	ErrorTypeNotReady    ErrorType = "not_ready"
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

// NewUnauthorizedError 创建未授权错误
func NewUnauthorizedError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUnauthorized, message, originalError)
}

// NewUnreachableError 创建远端不可达错误
func NewUnreachableError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUnreachable, message, originalError)
}

// NewRemoteError 创建远端返回失败错误，detail 来自远端错误负载（可为空）
func NewRemoteError(message string, detail string, originalError error) *AppError {
	if detail != "" {
		message = fmt.Sprintf("%s: %s", message, detail)
	}
	return NewAppError(ErrorTypeRemote, message, originalError)
}

// NewProtocolError 创建协议违规错误（HTTP成功但负载结构非法）
func NewProtocolError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeProtocol, message, originalError)
}

// NewTimeoutError 创建超时错误
func NewTimeoutError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTimeout, message, originalError)
}

// NewPersistenceError 创建持久化失败错误（调用方视为非致命）
func NewPersistenceError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypePersistence, message, originalError)
}

// NewNotReadyError 创建未就绪错误（启动门禁失败）
func NewNotReadyError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotReady, message, originalError)
}

// isType 检查错误链中是否存在指定类型的 AppError
func isType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsUnauthorizedError 检查是否为未授权错误
func IsUnauthorizedError(err error) bool {
	return isType(err, ErrorTypeUnauthorized)
}

// IsUnreachableError 检查是否为远端不可达错误
func IsUnreachableError(err error) bool {
	return isType(err, ErrorTypeUnreachable)
}

// IsRemoteError 检查是否为远端返回失败错误
func IsRemoteError(err error) bool {
	return isType(err, ErrorTypeRemote)
}

// IsProtocolError 检查是否为协议违规错误
func IsProtocolError(err error) bool {
	return isType(err, ErrorTypeProtocol)
}

// IsTimeoutError 检查是否为超时错误
func IsTimeoutError(err error) bool {
	return isType(err, ErrorTypeTimeout)
}

// IsPersistenceError 检查是否为持久化失败错误
func IsPersistenceError(err error) bool {
	return isType(err, ErrorTypePersistence)
}

// IsNotReadyError 检查是否为未就绪错误
func IsNotReadyError(err error) bool {
	return isType(err, ErrorTypeNotReady)
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
	case ErrorTypeUnauthorized:
		return "UNAUTHORIZED"
	case ErrorTypeUnreachable:
		return "INFERENCE_UNREACHABLE"
	case ErrorTypeRemote:
		return "INFERENCE_REMOTE_ERROR"
	case ErrorTypeProtocol:
		return "PROTOCOL_VIOLATION"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypePersistence:
		return "PERSISTENCE_FAILURE"
	case ErrorTypeNotReady:
		return "NOT_READY"
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
