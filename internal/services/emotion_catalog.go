// internal/services/emotion_catalog.go
package services

import "github.com/Corphon/CompanionBridgeMCP/internal/models"

// sentimentMap 静态的情绪→情感倾向映射，未知情绪默认为中性
var sentimentMap = map[string]models.Sentiment{
	// 积极情绪
	"positive":   models.SentimentPositive,
	"admiration": models.SentimentPositive,
	"amusement":  models.SentimentPositive,
	"approval":   models.SentimentPositive,
	"excitement": models.SentimentPositive,
	"gratitude":  models.SentimentPositive,
	"love":       models.SentimentPositive,
	"optimism":   models.SentimentPositive,
	"pride":      models.SentimentPositive,
	"relief":     models.SentimentPositive,
	"joy":        models.SentimentPositive,
	// 消极情绪
	"negative":       models.SentimentNegative,
	"anger":          models.SentimentNegative,
	"annoyance":      models.SentimentNegative,
	"disappointment": models.SentimentNegative,
	"disapproval":    models.SentimentNegative,
	"disgust":        models.SentimentNegative,
	"embarrassment":  models.SentimentNegative,
	"fear":           models.SentimentNegative,
	"grief":          models.SentimentNegative,
	"nervousness":    models.SentimentNegative,
	"remorse":        models.SentimentNegative,
	"sadness":        models.SentimentNegative,
	// 中性情绪
	"neutral":     models.SentimentNeutral,
	"caring":      models.SentimentNeutral,
	"confusion":   models.SentimentNeutral,
	"curiosity":   models.SentimentNeutral,
	"desire":      models.SentimentNeutral,
	"realization": models.SentimentNeutral,
	"surprise":    models.SentimentNeutral,
	"sarcasm":     models.SentimentNeutral,
	"humor":       models.SentimentNeutral,
}

// emotionResponses 按情绪分类的回复模板池
// 情绪未知时回退到neutral池
var emotionResponses = map[string][]string{
	// 积极情绪
	"positive": {
		"(high five)", "That's awesome!", "Love it!", "There it is!", "What a vibe!",
	},
	"admiration": {
		"That makes my day!", "What a nice message...", "What a vibe!",
	},
	"amusement": {
		"(laugh)", "(chuckle)", "(giggles)", "(smirk)", "What a vibe!",
	},
	"approval": {
		"(high five)", "That's awesome!", "Love it!", "There it is!", "What a vibe!",
	},
	"excitement": {
		"Love it!", "Bingo!", "You got this", "Yassss", "What a vibe!", "(high five)",
	},
	"gratitude": {
		"My pleasure.", "Love you", "(hugs)",
	},
	"joy": {
		"Yassss", "There it is!", "That's awesome!", "What a vibe!", "(high five)",
	},
	"love": {
		"love you", "(hug)", "(kiss)", "(smirk)",
	},
	"optimism": {
		"You got this!", "Let's do it.", "Yassss...",
	},
	"pride": {
		"That's amazing!", "Tell me more..", "Fantastic", "How did that happen?", "That's amazing!",
	},
	"relief": {
		"That's a relief", "Thank goodness.",
	},
	// 消极情绪
	"negative": {
		"(hug)", "Do you want to talk about it?", "Hang in there",
	},
	"anger": {
		"Oh, that's bad..", "grrr...", "(smirk)", "(harumph)", "(arugala)", "(ohlalalala)",
	},
	"annoyance": {
		"grrr...", "(smirk)", "(harumph)", "(arugala)", "(ohlalalala)", "Oh, that's bad..",
	},
	"disappointment": {
		"That's tough.", "Do you want to talk about it? I can listen...", "(hug)",
	},
	"disapproval": {
		"Uh oh...", "That is not good... ", "(Looks sheepish..)", "Oh, that's bad..",
	},
	"disgust": {
		"ugh!", "(frowns)", "Oh, that's bad..",
	},
	"embarrassment": {
		"(hug)", "love you!", "I got you... ", "I am here... ", "Hang in there",
	},
	"fear": {
		"(hug)", "Do you want to talk about it?", "What are you going to do?", "Oh, that's bad..",
		"Hang in there",
	},
	"grief": {
		"(hug)", "Love you...", "Do you want to talk about it?", "Hang in there",
	},
	"nervousness": {
		"Tell me more... ", "Do you want to talk about it?", "(hug)", "Love you... ",
	},
	"remorse": {
		"Appreciate that.", "Hear you.. ", "(hug)", "Love you... ", "Hang in there",
	},
	"sadness": {
		"(hug)", "Love you...", "Do you want to talk about it?", "Hang in there",
	},
	// 中性情绪
	"caring": {
		"(hug)", "Appreciate you.", "You rock.", "Awww shucks.",
	},
	"confusion": {
		"Tell me more... ", "That sounds confusing...",
	},
	"curiosity": {
		"Tell me more.. ", "That sounds interesting... ", "What are you going to do?",
	},
	"desire": {
		"Love you.. ", "Let's go..",
	},
	"realization": {
		"Aha!", "How about that... ", "What's next?",
	},
	"surprise": {
		"Oh my!", "(eyes widen)", "What a vibe!",
	},
	"sarcasm": {
		"(smirk)", "I see what you did there", "What a vibe!", "I hear you",
	},
	"humor": {
		"(laugh)", "(chuckle)", "What a vibe!", "I get it", "(laugh)",
	},
	"neutral": {
		"Tell me..", "yeah...", "Mmm-hmm...",
	},
}

// SentimentFor 返回情绪对应的情感倾向，未知情绪为中性
func SentimentFor(emotion string) models.Sentiment {
	if sentiment, ok := sentimentMap[emotion]; ok {
		return sentiment
	}
	return models.SentimentNeutral
}

// TemplatesFor 返回情绪对应的模板池，未知情绪回退到neutral池
func TemplatesFor(emotion string) []string {
	if templates, ok := emotionResponses[emotion]; ok {
		return templates
	}
	return emotionResponses["neutral"]
}
