// internal/auth/auth_test.go
package auth

import (
	"strings"
	"testing"
	"time"
)

func testConfig() *TokenConfig {
	return &TokenConfig{
		Secret:     []byte("test-session-secret"),
		Expiration: time.Hour,
	}
}

// TestTokenRoundTrip 测试令牌签发与解析往返
func TestTokenRoundTrip(t *testing.T) {
	config := testConfig()

	tokenString, err := GenerateToken("user-42", config)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	token, err := ParseToken(tokenString, config)
	if err != nil {
		t.Fatalf("解析令牌失败: %v", err)
	}
	if token.UserID != "user-42" {
		t.Errorf("用户ID应往返一致，实际: %q", token.UserID)
	}
	if token.ExpiresAt <= time.Now().Unix() {
		t.Error("令牌过期时间应在未来")
	}
}

// TestExpiredToken 测试过期令牌被拒绝
func TestExpiredToken(t *testing.T) {
	config := &TokenConfig{
		Secret:     []byte("test-session-secret"),
		Expiration: -time.Hour,
	}

	tokenString, err := GenerateToken("user-42", config)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	if _, err := ParseToken(tokenString, config); err == nil {
		t.Error("过期令牌应被拒绝")
	}
}

// TestTamperedToken 测试被篡改的令牌被拒绝
func TestTamperedToken(t *testing.T) {
	config := testConfig()

	tokenString, err := GenerateToken("user-42", config)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	// 改动负载的任意字节，签名校验应失败
	parts := strings.Split(tokenString, ".")
	tampered := "x" + parts[0][1:] + "." + parts[1]

	if _, err := ParseToken(tampered, config); err == nil {
		t.Error("篡改的令牌应被拒绝")
	}
}

// TestWrongSecret 测试使用错误密钥解析被拒绝
func TestWrongSecret(t *testing.T) {
	tokenString, err := GenerateToken("user-42", testConfig())
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	other := &TokenConfig{Secret: []byte("another-secret"), Expiration: time.Hour}
	if _, err := ParseToken(tokenString, other); err == nil {
		t.Error("错误密钥应被拒绝")
	}
}

// TestEmptySecret 测试未配置密钥时拒绝签发与解析
func TestEmptySecret(t *testing.T) {
	empty := &TokenConfig{Expiration: time.Hour}

	if _, err := GenerateToken("user-42", empty); err == nil {
		t.Error("无密钥签发应失败")
	}
	if _, err := ParseToken("anything.anything", empty); err == nil {
		t.Error("无密钥解析应失败")
	}
}

// TestMalformedToken 测试格式非法的令牌被拒绝
func TestMalformedToken(t *testing.T) {
	config := testConfig()

	cases := []string{"", "no-dot", "a.b.c", "!!!.###"}
	for _, tokenString := range cases {
		if _, err := ParseToken(tokenString, config); err == nil {
			t.Errorf("非法令牌应被拒绝: %q", tokenString)
		}
	}
}
