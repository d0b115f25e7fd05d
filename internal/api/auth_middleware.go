// internal/api/auth_middleware.go
package api

import (
	"strings"
	"time"

	"github.com/Corphon/CompanionBridgeMCP/internal/auth"
	"github.com/Corphon/CompanionBridgeMCP/internal/config"
	"github.com/gin-gonic/gin"
)

// 会话令牌有效期
const sessionTokenExpiration = 24 * time.Hour

// tokenConfig 从当前配置构建令牌配置
func tokenConfig() *auth.TokenConfig {
	cfg := config.GetCurrentConfig()
	return &auth.TokenConfig{
		Secret:     []byte(cfg.SessionSecret),
		Expiration: sessionTokenExpiration,
	}
}

// APIKeyAuth 校验请求头中的API密钥
// 未配置API_KEY时放行所有请求（本地单用户部署的默认形态）
func APIKeyAuth() gin.HandlerFunc {
	helper := NewResponseHelper()

	return func(c *gin.Context) {
		cfg := config.GetCurrentConfig()
		if cfg.APIKey == "" {
			c.Next()
			return
		}

		provided := c.GetHeader("X-API-Key")
		if provided == "" || provided != cfg.APIKey {
			helper.Unauthorized(c, "无效的API密钥")
			c.Abort()
			return
		}

		c.Next()
	}
}

// SessionTokenAuth 校验Bearer会话令牌并将用户ID写入上下文
// 未配置SESSION_SECRET时退化为仅API密钥校验
func SessionTokenAuth() gin.HandlerFunc {
	helper := NewResponseHelper()

	return func(c *gin.Context) {
		cfg := config.GetCurrentConfig()
		if cfg.SessionSecret == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			helper.Unauthorized(c, "缺少会话令牌")
			c.Abort()
			return
		}

		token, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer "), tokenConfig())
		if err != nil {
			helper.Unauthorized(c, "会话令牌无效或已过期")
			c.Abort()
			return
		}

		c.Set("user_id", token.UserID)
		c.Next()
	}
}

// IssueSessionToken 为指定用户签发会话令牌
func IssueSessionToken(userID string) (string, error) {
	return auth.GenerateToken(userID, tokenConfig())
}
