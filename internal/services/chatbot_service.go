// internal/services/chatbot_service.go
package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/CompanionBridgeMCP/internal/errors"
	"github.com/Corphon/CompanionBridgeMCP/internal/inference"
	"github.com/Corphon/CompanionBridgeMCP/internal/models"
	"github.com/Corphon/CompanionBridgeMCP/internal/utils"
)

// 编排器状态
const (
	stateUninitialized int32 = iota
	stateInitializing
	stateReady
)

// 会话ID为空时使用的默认会话
const defaultSessionID = "default"

// 历史消息长度上限，超出视为泄漏的内部提示文本
const maxTurnContentLength = 2000

// 系统提示泄漏特征，命中任意一条的历史消息在每轮处理前被移除
var leakMarkers = []string{
	"[System:",
	"IMPORTANT INSTRUCTIONS",
	"Generate a brief, natural conversation starter",
	"TIME-AWARE Examples",
	"REQUIREMENTS:",
}

// InferenceGateway 是编排器依赖的推理网关契约
// *inference.Client 是生产实现，测试可注入桩实现
type InferenceGateway interface {
	WaitForReady(ctx context.Context, maxAttempts int, retryDelay time.Duration) error
	StartHealthChecks(interval time.Duration)
	StopHealthChecks()
	Healthy() bool
	ClassifyEmotion(ctx context.Context, text string) (*models.EmotionResult, error)
	GenerateWithContext(ctx context.Context, genCtx *inference.GenerationContext) (*models.GenerationResult, error)
	SaveConversation(ctx context.Context, record *models.ConversationRecord) error
	Cancel(ctx context.Context, sessionID, requestID string) error
}

// session 持有单个会话的全部可变状态
// mu 串行化同一会话的在途轮次，避免交错写坏历史
type session struct {
	mu      sync.Mutex
	history []models.ConversationTurn
}

// ChatbotService 是消息处理编排器
// 状态机：Uninitialized → Initializing → Ready，只有Ready状态接受消息
// 会话状态按会话ID分键持有，所有操作显式传入会话ID
type ChatbotService struct {
	Gateway    InferenceGateway
	Characters *CharacterService
	Builder    *ResponseBuilder

	// 启动门禁与健康轮询参数
	ReadyMaxAttempts    int
	ReadyRetryDelay     time.Duration
	HealthCheckInterval time.Duration

	state int32

	sessionsMutex sync.RWMutex
	sessions      map[string]*session

	initMutex sync.Mutex
}

// NewChatbotService 创建消息处理编排器
func NewChatbotService(gateway InferenceGateway, characters *CharacterService) *ChatbotService {
	return &ChatbotService{
		Gateway:             gateway,
		Characters:          characters,
		Builder:             NewResponseBuilder(),
		ReadyMaxAttempts:    5,
		ReadyRetryDelay:     2 * time.Second,
		HealthCheckInterval: 30 * time.Second,
		sessions:            make(map[string]*session),
	}
}

// IsReady 返回编排器是否处于就绪状态
func (s *ChatbotService) IsReady() bool {
	return atomic.LoadInt32(&s.state) == stateReady
}

// Initialize 执行启动序列：加载角色档案 → 等待推理服务就绪 → 启动健康轮询
// 启动门禁失败时编排器退回未初始化状态，可安全重复调用
func (s *ChatbotService) Initialize(ctx context.Context) error {
	s.initMutex.Lock()
	defer s.initMutex.Unlock()

	if atomic.LoadInt32(&s.state) == stateReady {
		return nil
	}

	logger := utils.GetLogger()
	logger.Info("Initializing chatbot orchestrator...", nil)
	atomic.StoreInt32(&s.state, stateInitializing)

	// 角色档案已缓存时跳过加载
	if s.Characters.ActiveCharacter() == nil {
		s.Characters.LoadActiveCharacter("")
	} else {
		logger.Info("Character already loaded, skipping character load", nil)
	}

	if err := s.Gateway.WaitForReady(ctx, s.ReadyMaxAttempts, s.ReadyRetryDelay); err != nil {
		atomic.StoreInt32(&s.state, stateUninitialized)
		return errors.WrapError(err, "推理服务不可用", errors.ErrorTypeNotReady)
	}

	s.Gateway.StartHealthChecks(s.HealthCheckInterval)

	atomic.StoreInt32(&s.state, stateReady)
	logger.Info("Chatbot orchestrator initialized", nil)
	return nil
}

// ensureReady 惰性初始化：未就绪时在请求路径上重试启动序列
// 推理服务恢复后，首个到达的请求会让编排器重新进入就绪状态，
// 降级启动因此无需进程重启即可恢复
func (s *ChatbotService) ensureReady(ctx context.Context) error {
	if s.IsReady() {
		return nil
	}
	return s.Initialize(ctx)
}

// Shutdown 停止后台健康轮询
func (s *ChatbotService) Shutdown() {
	s.Gateway.StopHealthChecks()
	atomic.StoreInt32(&s.state, stateUninitialized)
}

// getSession 获取或创建会话，空ID映射到默认会话
func (s *ChatbotService) getSession(sessionID string) *session {
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	s.sessionsMutex.RLock()
	sess, exists := s.sessions[sessionID]
	s.sessionsMutex.RUnlock()
	if exists {
		return sess
	}

	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()
	if sess, exists = s.sessions[sessionID]; exists {
		return sess
	}
	sess = &session{}
	s.sessions[sessionID] = sess
	return sess
}

// peekSession 只读查询会话，未知ID不创建新条目
func (s *ChatbotService) peekSession(sessionID string) *session {
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	s.sessionsMutex.RLock()
	defer s.sessionsMutex.RUnlock()
	return s.sessions[sessionID]
}

// ProcessMessage 端到端处理一条用户消息，未就绪时先尝试惰性初始化
// 情绪分类失败会原样上抛（协议违规不静默替换）；
// 生成路径的任何失败被吸收为静态兜底回复，不向调用方报错
func (s *ChatbotService) ProcessMessage(ctx context.Context, userMessage, sessionID, userID string, skipHistory bool) (*models.ResponseEnvelope, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}

	logger := utils.GetLogger()
	metrics := utils.GetMetricsCollector()

	sess := s.getSession(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// 每轮处理前清洗历史，旧策略下写入的数据也会被防御性清除
	s.sanitizeSession(sess)

	// 情绪分类是前置条件：失败必须对调用方可见，
	// 静默替换中性情绪会掩盖后端回归
	emotion, err := s.Gateway.ClassifyEmotion(ctx, userMessage)
	if err != nil {
		metrics.IncrementCounter(utils.MetricEmotionFailures)
		logger.Error("Inference service failed to return valid emotion data", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, errors.WrapError(err, "情绪分类结果无效", errors.ErrorTypeProtocol)
	}

	logger.Info("Detected emotion", map[string]interface{}{
		"emotion":    emotion.Emotion,
		"confidence": emotion.Confidence,
	})

	// 角色档案按会话生命周期缓存，避免重复加载
	character := s.Characters.ActiveCharacter()
	if character == nil {
		character = s.Characters.LoadActiveCharacter("")
	}

	// 用户设置每轮重新加载，功能开关可能被用户随时修改
	settings := s.Characters.LoadUserSettings()
	enriched := mergeCharacterSettings(character, settings)

	// 上下文携带当前已清洗历史的快照（不含本轮用户消息）
	historySnapshot := make([]models.ConversationTurn, len(sess.history))
	copy(historySnapshot, sess.history)

	genCtx := &inference.GenerationContext{
		Text:                userMessage,
		EmotionData:         emotion,
		ConversationHistory: historySnapshot,
		CharacterProfile:    enriched,
		EnableMemory:        settings.EnableMemory,
		EnableWebSearch:     settings.EnableWebSearch,
		WebSearchAPIKey:     settings.WebSearchAPIKey,
	}

	logger.Info("Processing message", map[string]interface{}{
		"history_len":    len(sess.history),
		"memory_enabled": settings.EnableMemory,
	})

	// 记录用户轮次（系统性消息通过skipHistory跳过）
	if !skipHistory {
		sess.history = append(sess.history, models.ConversationTurn{
			Role:    models.RoleUser,
			Content: userMessage,
		})
	}

	result, genErr := s.Gateway.GenerateWithContext(ctx, genCtx)
	if genErr != nil {
		// 生成是尽力而为：降级回复优于对话中途的硬失败
		// 中止的轮次不在历史中留下痕迹
		if !skipHistory {
			sess.history = sess.history[:len(sess.history)-1]
		}
		metrics.IncrementCounter(utils.MetricStrategyFallback)
		logger.Error("Error processing message", map[string]interface{}{
			"error": genErr.Error(),
		})
		return s.Builder.BuildFallbackResponse(), nil
	}

	var envelope *models.ResponseEnvelope
	if strings.TrimSpace(result.Text) != "" {
		envelope = s.Builder.BuildLLMResponse(result.Text, emotion.Emotion)
		metrics.IncrementCounter(utils.MetricStrategyLLM)
	} else {
		// 生成无可用文本时按情绪模板池降级
		envelope = s.Builder.BuildEmotionResponse(emotion.Emotion)
		metrics.IncrementCounter(utils.MetricStrategyEmotion)
	}

	if !skipHistory {
		sess.history = append(sess.history, models.ConversationTurn{
			Role:    models.RoleAssistant,
			Content: envelope.Response,
		})
	}

	// 裁剪历史，最旧的轮次先丢弃
	if len(sess.history) > models.MaxHistory {
		sess.history = sess.history[len(sess.history)-models.MaxHistory:]
	}

	// 附加元信息，缺失字段取安全零值以防御后端的不完整响应
	envelope.Metadata.EmotionConfidence = emotion.Confidence
	if emotion.Scores != nil {
		envelope.Metadata.EmotionScores = emotion.Scores
	} else {
		envelope.Metadata.EmotionScores = map[string]float64{}
	}
	envelope.Metadata.TokensGenerated = result.TokensGenerated
	envelope.Metadata.Character = s.Characters.ActiveCharacterName()

	metrics.IncrementCounter(utils.MetricTurnsProcessed)

	// 记忆持久化在后台进行，结果不影响已经返回的回复
	if settings.EnableMemory {
		s.persistConversation(&models.ConversationRecord{
			UserID:            userID,
			CharacterName:     s.Characters.ActiveCharacterName(),
			UserMessage:       userMessage,
			CharacterResponse: envelope.Response,
			Emotion:           emotion.Emotion,
			SessionID:         sessionID,
		})
	}

	return envelope, nil
}

// persistConversation 后台保存会话记录，失败只记录与计数
func (s *ChatbotService) persistConversation(record *models.ConversationRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		metrics := utils.GetMetricsCollector()
		if err := s.Gateway.SaveConversation(ctx, record); err != nil {
			metrics.IncrementCounter(utils.MetricPersistenceFailures)
			utils.GetLogger().Warn("Failed to save conversation to memory", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		metrics.IncrementCounter(utils.MetricPersistenceSucceeded)
	}()
}

// AnalyzeEmotion 只做情绪分类，不触碰历史也不生成回复
// 与ProcessMessage使用相同的有效性校验
func (s *ChatbotService) AnalyzeEmotion(ctx context.Context, text string) (*models.EmotionResult, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}

	result, err := s.Gateway.ClassifyEmotion(ctx, text)
	if err != nil {
		utils.GetLogger().Error("Inference service returned invalid emotion result for analysis", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, errors.WrapError(err, "情绪分析结果无效", errors.ErrorTypeProtocol)
	}

	return result, nil
}

// ReloadCharacter 强制重新加载角色档案并清空缓存
func (s *ChatbotService) ReloadCharacter() error {
	if !s.IsReady() {
		return errors.NewNotReadyError("编排器未初始化", nil)
	}

	s.Characters.InvalidateCache()
	s.Characters.LoadActiveCharacter("")
	utils.GetLogger().Info("Character reloaded and cache cleared", nil)
	return nil
}

// ClearHistory 无条件清空指定会话的历史
// 读路径不为未知会话分配状态，不存在的会话无需清空
func (s *ChatbotService) ClearHistory(sessionID string) {
	sess := s.peekSession(sessionID)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	removed := len(sess.history)
	sess.history = nil
	utils.GetLogger().Info("Conversation history cleared", map[string]interface{}{
		"removed": removed,
	})
}

// GetHistory 返回指定会话历史的只读副本
// 读路径不为未知会话分配状态，不存在的会话返回空历史
func (s *ChatbotService) GetHistory(sessionID string) []models.ConversationTurn {
	sess := s.peekSession(sessionID)
	if sess == nil {
		return []models.ConversationTurn{}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	history := make([]models.ConversationTurn, len(sess.history))
	copy(history, sess.history)
	return history
}

// GetActiveCharacterName 返回激活角色名称
func (s *ChatbotService) GetActiveCharacterName() string {
	return s.Characters.ActiveCharacterName()
}

// CancelGeneration 将取消请求转发给推理网关，尽力而为
func (s *ChatbotService) CancelGeneration(ctx context.Context, sessionID, requestID string) error {
	return s.Gateway.Cancel(ctx, sessionID, requestID)
}

// sanitizeSession 清洗会话历史并记录移除数量
func (s *ChatbotService) sanitizeSession(sess *session) {
	before := len(sess.history)
	sess.history = sanitizeTurns(sess.history)

	if removed := before - len(sess.history); removed > 0 {
		utils.GetMetricsCollector().AddCounter(utils.MetricHistorySanitized, int64(removed))
		utils.GetLogger().Info("Sanitized conversation history", map[string]interface{}{
			"removed": removed,
		})
	}
}

// sanitizeTurns 移除命中泄漏特征或超长的历史消息，保持其余顺序不变
// 幂等：重复应用结果不变
func sanitizeTurns(turns []models.ConversationTurn) []models.ConversationTurn {
	kept := turns[:0:len(turns)]
	for _, turn := range turns {
		if isLeakedPrompt(turn.Content) {
			continue
		}
		kept = append(kept, turn)
	}
	return kept
}

// isLeakedPrompt 判断消息内容是否是泄漏的系统提示
// 正常的用户/助手消息很短，超长消息按泄漏处理
func isLeakedPrompt(content string) bool {
	if len(content) > maxTurnContentLength {
		return true
	}
	for _, marker := range leakMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

// mergeCharacterSettings 将角色档案与用户设置合并为单次生成的推理输入
func mergeCharacterSettings(character *models.CharacterProfile, settings *models.UserSettings) *models.EnrichedCharacter {
	enriched := &models.EnrichedCharacter{
		UserGender:              settings.UserGender,
		UserTimezone:            settings.Timezone,
		UserBackstory:           settings.UserBackstory,
		UserPreferences:         settings.UserPreferences,
		UserMajorLifeEvents:     settings.MajorLifeEvents,
		SharedRoleplayEvents:    settings.SharedRoleplayEvents,
		CommunicationBoundaries: settings.CommunicationBoundaries,
	}
	if character != nil {
		enriched.CharacterProfile = *character
	}
	enriched.UserName = settings.UserName
	return enriched
}
