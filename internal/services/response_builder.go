// internal/services/response_builder.go
package services

import (
	"math/rand"
	"time"

	"github.com/Corphon/CompanionBridgeMCP/internal/models"
)

// 兜底回复，其他策略全部不可用时返回
const fallbackReply = "I'm here."

// ResponseBuilder 按三级策略构造回复：
// llm（生成文本可用）→ emotion_fallback（按情绪模板池随机）→ fallback（静态兜底）
type ResponseBuilder struct {
	// pick 从 [0,n) 选择一个下标，测试可注入确定性实现
	pick func(n int) int
}

// NewResponseBuilder 创建回复构造器
func NewResponseBuilder() *ResponseBuilder {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &ResponseBuilder{
		pick: rng.Intn,
	}
}

// NewResponseBuilderWithPicker 创建使用指定选择函数的构造器（测试用）
func NewResponseBuilderWithPicker(pick func(n int) int) *ResponseBuilder {
	return &ResponseBuilder{pick: pick}
}

// BuildLLMResponse 包装非空的LLM生成文本
// 对相同的情绪与文本输入是确定性的
func (rb *ResponseBuilder) BuildLLMResponse(response, emotion string) *models.ResponseEnvelope {
	return &models.ResponseEnvelope{
		Response: response,
		Metadata: models.ResponseMetadata{
			Strategy:  models.StrategyLLM,
			Sentiment: SentimentFor(emotion),
			Emotion:   emotion,
		},
	}
}

// BuildEmotionResponse 从情绪模板池中均匀随机选取一条回复
func (rb *ResponseBuilder) BuildEmotionResponse(emotion string) *models.ResponseEnvelope {
	templates := TemplatesFor(emotion)
	response := templates[rb.pick(len(templates))]

	return &models.ResponseEnvelope{
		Response: response,
		Metadata: models.ResponseMetadata{
			Strategy:  models.StrategyEmotionFallback,
			Sentiment: SentimentFor(emotion),
			Emotion:   emotion,
		},
	}
}

// BuildFallbackResponse 返回静态兜底回复
func (rb *ResponseBuilder) BuildFallbackResponse() *models.ResponseEnvelope {
	return &models.ResponseEnvelope{
		Response: fallbackReply,
		Metadata: models.ResponseMetadata{
			Strategy:  models.StrategyFallback,
			Sentiment: models.SentimentNeutral,
			Emotion:   "neutral",
		},
	}
}
