// internal/api/handlers.go
package api

import (
	"strings"

	apperrors "github.com/Corphon/CompanionBridgeMCP/internal/errors"
	"github.com/Corphon/CompanionBridgeMCP/internal/inference"
	"github.com/Corphon/CompanionBridgeMCP/internal/services"
	"github.com/Corphon/CompanionBridgeMCP/internal/utils"
	"github.com/gin-gonic/gin"
)

// Handler 聚合API处理器的依赖
type Handler struct {
	Chatbot     *services.ChatbotService
	Characters  *services.CharacterService
	Inference   *inference.Client
	Broadcaster *StatusBroadcaster
	helper      *ResponseHelper
}

// NewHandler 创建API处理器
func NewHandler(chatbot *services.ChatbotService, characters *services.CharacterService, client *inference.Client) *Handler {
	return &Handler{
		Chatbot:     chatbot,
		Characters:  characters,
		Inference:   client,
		Broadcaster: NewStatusBroadcaster(),
		helper:      NewResponseHelper(),
	}
}

// ChatRequest 聊天请求体
type ChatRequest struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	SkipHistory bool   `json:"skip_history"`
}

// AnalyzeRequest 情感分析请求体
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// CancelRequest 取消生成请求体
type CancelRequest struct {
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
}

// TokenRequest 会话令牌签发请求体
type TokenRequest struct {
	UserID string `json:"user_id"`
}

// resolveUserID 优先使用令牌中的用户ID，其次请求体，最后默认值
func resolveUserID(c *gin.Context, bodyUserID string) string {
	if userID := c.GetString("user_id"); userID != "" {
		return userID
	}
	if bodyUserID != "" {
		return bodyUserID
	}
	return "local"
}

// Chat 处理一轮对话
// POST /api/chat
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		h.helper.Error(c, 400, ErrorMessageEmpty, "消息内容不能为空")
		return
	}

	userID := resolveUserID(c, req.UserID)
	envelope, err := h.Chatbot.ProcessMessage(c.Request.Context(), req.Message, req.SessionID, userID, req.SkipHistory)
	if err != nil {
		h.respondChatError(c, err)
		return
	}

	h.helper.Success(c, envelope)
}

// respondChatError 将编排器错误映射为HTTP状态
func (h *Handler) respondChatError(c *gin.Context, err error) {
	switch {
	case apperrors.IsNotReadyError(err):
		h.helper.ServiceUnavailable(c, "对话服务尚未就绪", err.Error())
	case apperrors.IsUnreachableError(err), apperrors.IsTimeoutError(err):
		h.helper.ServiceUnavailable(c, "推理服务当前不可用", err.Error())
	case apperrors.IsProtocolError(err), apperrors.IsRemoteError(err):
		h.helper.BadGateway(c, "推理服务返回无效结果", err.Error())
	case apperrors.IsValidationError(err):
		h.helper.BadRequest(c, err.Error())
	default:
		utils.GetLogger().Error("Unhandled chat error", map[string]interface{}{
			"error": err.Error(),
		})
		h.helper.InternalError(c, "处理消息时发生错误")
	}
}

// Analyze 对单段文本做情感分析，不写入历史
// POST /api/chat/analyze
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		h.helper.Error(c, 400, ErrorMessageEmpty, "文本内容不能为空")
		return
	}

	result, err := h.Chatbot.AnalyzeEmotion(c.Request.Context(), req.Text)
	if err != nil {
		h.respondChatError(c, err)
		return
	}

	h.helper.Success(c, result)
}

// GetHistory 返回指定会话的对话历史
// GET /api/chat/history?session_id=...
func (h *Handler) GetHistory(c *gin.Context) {
	sessionID := c.Query("session_id")
	history := h.Chatbot.GetHistory(sessionID)

	h.helper.Success(c, gin.H{
		"session_id": sessionID,
		"history":    history,
		"count":      len(history),
	})
}

// ClearHistory 清空指定会话的对话历史
// DELETE /api/chat/history?session_id=...
func (h *Handler) ClearHistory(c *gin.Context) {
	sessionID := c.Query("session_id")
	h.Chatbot.ClearHistory(sessionID)

	h.helper.Success(c, nil, "对话历史已清空")
}

// CancelGeneration 请求取消在途的生成
// POST /api/chat/cancel
func (h *Handler) CancelGeneration(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	if req.RequestID == "" {
		req.RequestID = c.GetString("request_id")
	}

	if err := h.Chatbot.CancelGeneration(c.Request.Context(), req.SessionID, req.RequestID); err != nil {
		// 取消是尽力而为的，失败不阻断客户端
		h.helper.Error(c, 502, ErrorCancelFailed, "取消请求未能送达推理服务", err.Error())
		return
	}

	h.helper.Success(c, nil, "取消请求已发送")
}

// GetCharacter 返回当前激活的角色信息
// GET /api/character
func (h *Handler) GetCharacter(c *gin.Context) {
	character := h.Characters.ActiveCharacter()
	if character == nil {
		character = h.Characters.LoadActiveCharacter("")
	}

	h.helper.Success(c, gin.H{
		"name":           character.CharacterName,
		"companion_type": character.CompanionType,
		"gender":         character.Gender,
		"role":           character.Role,
	})
}

// ListCharacters 列出档案目录中可选择的角色
// GET /api/character/list
func (h *Handler) ListCharacters(c *gin.Context) {
	names, err := h.Characters.ListCharacterNames()
	if err != nil {
		h.helper.InternalError(c, "列出角色档案失败", err.Error())
		return
	}

	h.helper.Success(c, gin.H{
		"characters": names,
		"active":     h.Characters.ActiveCharacterName(),
	})
}

// ReloadCharacter 重新从磁盘加载角色配置
// POST /api/character/reload
func (h *Handler) ReloadCharacter(c *gin.Context) {
	if err := h.Chatbot.ReloadCharacter(); err != nil {
		h.helper.Error(c, 500, ErrorCharacterReloadFailed, "角色重载失败", err.Error())
		return
	}

	h.helper.Success(c, gin.H{
		"character": h.Chatbot.GetActiveCharacterName(),
	}, "角色已重载")
}

// Health 服务健康检查，包含推理服务的当前可用性
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	inferenceHealthy := h.Inference.Healthy()

	status := "ok"
	if !inferenceHealthy {
		status = "degraded"
	}

	h.helper.Success(c, gin.H{
		"status":            status,
		"ready":             h.Chatbot.IsReady(),
		"inference_healthy": inferenceHealthy,
		"inference_url":     h.Inference.BaseURL(),
		"character":         h.Chatbot.GetActiveCharacterName(),
	})
}

// Stats 返回编排器计数器快照
// GET /api/stats
func (h *Handler) Stats(c *gin.Context) {
	h.helper.Success(c, gin.H{
		"counters":       utils.GetMetricsCollector().Snapshot(),
		"status_clients": h.Broadcaster.ClientCount(),
	})
}

// SettingsRequest 设置更新请求体，nil字段保持不变
type SettingsRequest struct {
	EnableMemory           *bool  `json:"enable_memory"`
	EnableWebSearch        *bool  `json:"enable_web_search"`
	WebSearchAPIKey        string `json:"web_search_api_key"`
	DefaultActiveCharacter string `json:"default_active_character"`
}

// GetSettings 返回当前生效的用户设置
// GET /api/settings
func (h *Handler) GetSettings(c *gin.Context) {
	settings := h.Characters.LoadUserSettings()

	h.helper.Success(c, gin.H{
		"user_name":         settings.UserName,
		"timezone":          settings.Timezone,
		"enable_memory":     settings.EnableMemory,
		"enable_web_search": settings.EnableWebSearch,
		"active_character":  h.Characters.ActiveCharacterName(),
	})
}

// UpdateSettings 更新用户档案中的运行时设置
// PUT /api/settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	err := h.Characters.UpdateSettings(req.EnableMemory, req.EnableWebSearch,
		req.WebSearchAPIKey, req.DefaultActiveCharacter)
	if err != nil {
		h.helper.InternalError(c, "保存设置失败", err.Error())
		return
	}

	h.helper.Success(c, nil, "设置已保存")
}

// IssueToken 为用户签发会话令牌
// POST /api/auth/token
func (h *Handler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.helper.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	if req.UserID == "" {
		h.helper.BadRequest(c, "user_id不能为空")
		return
	}

	token, err := IssueSessionToken(req.UserID)
	if err != nil {
		h.helper.InternalError(c, "令牌签发失败", err.Error())
		return
	}

	h.helper.Success(c, gin.H{
		"token":   token,
		"user_id": req.UserID,
	})
}
