// internal/services/response_builder_test.go
package services

import (
	"testing"

	"github.com/Corphon/CompanionBridgeMCP/internal/models"
)

// TestBuildLLMResponse 测试LLM回复的包装
func TestBuildLLMResponse(t *testing.T) {
	builder := NewResponseBuilder()

	envelope := builder.BuildLLMResponse("Hello there!", "joy")

	if envelope.Response != "Hello there!" {
		t.Errorf("回复文本应原样保留，实际: %q", envelope.Response)
	}
	if envelope.Metadata.Strategy != models.StrategyLLM {
		t.Errorf("策略应为llm，实际: %s", envelope.Metadata.Strategy)
	}
	if envelope.Metadata.Sentiment != models.SentimentPositive {
		t.Errorf("joy应映射为positive，实际: %s", envelope.Metadata.Sentiment)
	}
	if envelope.Metadata.Emotion != "joy" {
		t.Errorf("情绪标签应为joy，实际: %s", envelope.Metadata.Emotion)
	}
}

// TestBuildEmotionResponseDeterministic 测试注入确定性选择函数后的模板选取
func TestBuildEmotionResponseDeterministic(t *testing.T) {
	builder := NewResponseBuilderWithPicker(func(n int) int { return 0 })

	envelope := builder.BuildEmotionResponse("sadness")

	expected := emotionResponses["sadness"][0]
	if envelope.Response != expected {
		t.Errorf("选择函数返回0时应取池中第一条，期望: %q，实际: %q", expected, envelope.Response)
	}
	if envelope.Metadata.Strategy != models.StrategyEmotionFallback {
		t.Errorf("策略应为emotion_fallback，实际: %s", envelope.Metadata.Strategy)
	}
	if envelope.Metadata.Sentiment != models.SentimentNegative {
		t.Errorf("sadness应映射为negative，实际: %s", envelope.Metadata.Sentiment)
	}
}

// TestBuildEmotionResponseMembership 测试随机选取的回复始终来自对应模板池
func TestBuildEmotionResponseMembership(t *testing.T) {
	builder := NewResponseBuilder()

	for i := 0; i < 50; i++ {
		envelope := builder.BuildEmotionResponse("joy")

		found := false
		for _, template := range emotionResponses["joy"] {
			if envelope.Response == template {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("回复不在joy模板池中: %q", envelope.Response)
		}
	}
}

// TestBuildEmotionResponseUnknownEmotion 测试未知情绪回退到neutral池
func TestBuildEmotionResponseUnknownEmotion(t *testing.T) {
	builder := NewResponseBuilderWithPicker(func(n int) int { return 0 })

	envelope := builder.BuildEmotionResponse("befuddlement")

	expected := emotionResponses["neutral"][0]
	if envelope.Response != expected {
		t.Errorf("未知情绪应使用neutral池，期望: %q，实际: %q", expected, envelope.Response)
	}
	if envelope.Metadata.Sentiment != models.SentimentNeutral {
		t.Errorf("未知情绪的倾向应为neutral，实际: %s", envelope.Metadata.Sentiment)
	}
}

// TestBuildFallbackResponse 测试静态兜底回复
func TestBuildFallbackResponse(t *testing.T) {
	builder := NewResponseBuilder()

	envelope := builder.BuildFallbackResponse()

	if envelope.Response != "I'm here." {
		t.Errorf("兜底回复应为固定文本，实际: %q", envelope.Response)
	}
	if envelope.Metadata.Strategy != models.StrategyFallback {
		t.Errorf("策略应为fallback，实际: %s", envelope.Metadata.Strategy)
	}
	if envelope.Metadata.Sentiment != models.SentimentNeutral {
		t.Errorf("兜底回复的倾向应为neutral，实际: %s", envelope.Metadata.Sentiment)
	}
}

// TestSentimentFor 测试情绪到情感倾向的映射
func TestSentimentFor(t *testing.T) {
	cases := []struct {
		emotion  string
		expected models.Sentiment
	}{
		{"joy", models.SentimentPositive},
		{"gratitude", models.SentimentPositive},
		{"anger", models.SentimentNegative},
		{"grief", models.SentimentNegative},
		{"curiosity", models.SentimentNeutral},
		{"unheard-of-emotion", models.SentimentNeutral},
	}

	for _, tc := range cases {
		if got := SentimentFor(tc.emotion); got != tc.expected {
			t.Errorf("SentimentFor(%q) = %s，期望 %s", tc.emotion, got, tc.expected)
		}
	}
}
