// internal/api/middleware_test.go
package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// TestRateLimiterAllow 测试令牌桶的基本限流行为
func TestRateLimiterAllow(t *testing.T) {
	limiter := &RateLimiter{visitors: make(map[string]*Visitor)}

	if !limiter.Allow("client-1", 2, time.Minute) {
		t.Error("第一次请求应被允许")
	}
	if !limiter.Allow("client-1", 2, time.Minute) {
		t.Error("第二次请求应被允许")
	}
	if limiter.Allow("client-1", 2, time.Minute) {
		t.Error("超过限额的请求应被拒绝")
	}

	// 不同客户端互不影响
	if !limiter.Allow("client-2", 2, time.Minute) {
		t.Error("其他客户端不应受限")
	}
}

// TestRateLimiterWindowReset 测试窗口过期后限额重置
func TestRateLimiterWindowReset(t *testing.T) {
	limiter := &RateLimiter{visitors: make(map[string]*Visitor)}

	window := 10 * time.Millisecond
	if !limiter.Allow("client-1", 1, window) {
		t.Fatal("第一次请求应被允许")
	}
	if limiter.Allow("client-1", 1, window) {
		t.Fatal("限额用尽后应被拒绝")
	}

	time.Sleep(2 * window)
	if !limiter.Allow("client-1", 1, window) {
		t.Error("窗口过期后应重新允许")
	}
}

// TestGetRateLimitHeaders 测试限流响应头的数值
func TestGetRateLimitHeaders(t *testing.T) {
	limiter := &RateLimiter{visitors: make(map[string]*Visitor)}

	limiter.Allow("client-1", 5, time.Minute)
	limit, remaining, reset := limiter.GetRateLimitHeaders("client-1", 5, time.Minute)

	if limit != 5 {
		t.Errorf("限额应为5，实际: %d", limit)
	}
	if remaining != 4 {
		t.Errorf("剩余额度应为4，实际: %d", remaining)
	}
	if reset <= time.Now().Add(-time.Second).Unix() {
		t.Errorf("重置时间应在未来，实际: %d", reset)
	}
}

// TestRequestIDMiddlewareGenerates 测试缺失请求ID时自动生成
func TestRequestIDMiddlewareGenerates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		if c.GetString("request_id") == "" {
			t.Error("上下文中应有请求ID")
		}
		c.Status(http.StatusOK)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Header().Get("X-Request-ID") == "" {
		t.Error("响应头应携带生成的请求ID")
	}
}

// TestRequestIDMiddlewareHonorsHeader 测试透传客户端提供的请求ID
func TestRequestIDMiddlewareHonorsHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Request-ID", "client-supplied-id")
	router.ServeHTTP(recorder, request)

	if got := recorder.Header().Get("X-Request-ID"); got != "client-supplied-id" {
		t.Errorf("应透传客户端请求ID，实际: %q", got)
	}
}

// TestCORSPreflights 测试OPTIONS预检直接返回204
func TestCORSPreflights(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(corsMiddleware())
	router.POST("/api/chat", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("预检请求应返回204，实际: %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("预检响应应携带CORS头")
	}
}

// TestSanitizeErrorMessage 测试错误消息中的敏感信息过滤
func TestSanitizeErrorMessage(t *testing.T) {
	cases := []struct {
		message  string
		expected string
	}{
		{"普通错误信息", "普通错误信息"},
		{"invalid api_key provided", "An internal error occurred"},
		{"SECRET leaked in message", "An internal error occurred"},
		{"bad token format", "An internal error occurred"},
	}

	for _, tc := range cases {
		if got := sanitizeErrorMessage(tc.message); got != tc.expected {
			t.Errorf("sanitizeErrorMessage(%q) = %q，期望 %q", tc.message, got, tc.expected)
		}
	}
}
