// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorUnauthorized  = "UNAUTHORIZED"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 会话相关错误
	ErrorMessageEmpty   = "MESSAGE_EMPTY"
	ErrorSessionInvalid = "SESSION_INVALID"

	// 推理服务相关错误
	ErrorInferenceUnavailable = "INFERENCE_UNAVAILABLE"
	ErrorInferenceInvalid     = "INFERENCE_INVALID_RESULT"
	ErrorCancelFailed         = "CANCEL_FAILED"

	// 角色相关错误
	ErrorCharacterNotFound     = "CHARACTER_NOT_FOUND"
	ErrorCharacterReloadFailed = "CHARACTER_RELOAD_FAILED"
)
