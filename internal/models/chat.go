// internal/models/chat.go
package models

// 会话历史的最大保留轮次，超出时从最旧的一端裁剪
const MaxHistory = 20

// 消息角色常量
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ResponseStrategy 表示回复的生成策略
type ResponseStrategy string

const (
	// 使用LLM生成的正常回复
	StrategyLLM ResponseStrategy = "llm"
	// LLM无可用输出时按情绪模板池随机选取
	StrategyEmotionFallback ResponseStrategy = "emotion_fallback"
	// 兜底回复，任何其他策略都不可用时使用
	StrategyFallback ResponseStrategy = "fallback"
)

// Sentiment 表示情绪所属的情感倾向
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ConversationTurn 表示会话中的一条消息（用户或助手）
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EmotionResult 表示一次情绪分类的结果
// Confidence 是必需字段，缺失视为协议违规，由网关在映射时校验
type EmotionResult struct {
	Emotion    string             `json:"emotion"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	Intensity  string             `json:"intensity,omitempty"`
	Category   string             `json:"category,omitempty"`
}

// ResponseMetadata 随回复返回的结构化元信息
type ResponseMetadata struct {
	Strategy          ResponseStrategy   `json:"strategy"`
	Sentiment         Sentiment          `json:"sentiment"`
	Emotion           string             `json:"emotion"`
	EmotionConfidence float64            `json:"emotion_confidence"`
	EmotionScores     map[string]float64 `json:"emotion_scores"`
	TokensGenerated   int                `json:"tokens_generated"`
	Character         string             `json:"character,omitempty"`
}

// ResponseEnvelope 是一次消息处理返回给调用方的完整结果
type ResponseEnvelope struct {
	Response string           `json:"response"`
	Metadata ResponseMetadata `json:"metadata"`
}

// GenerationResult 表示一次上下文生成调用的产出
type GenerationResult struct {
	Text            string `json:"text"`
	TokensGenerated int    `json:"tokens_generated"`
}

// ConversationRecord 是写入长期记忆的会话记录（尽力而为，不保证送达）
type ConversationRecord struct {
	UserID            string `json:"user_id"`
	CharacterName     string `json:"character_name"`
	UserMessage       string `json:"user_message"`
	CharacterResponse string `json:"character_response"`
	Emotion           string `json:"emotion"`
	SessionID         string `json:"session_id,omitempty"`
}
