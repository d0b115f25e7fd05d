// internal/api/router.go
package api

import (
	"fmt"

	"github.com/Corphon/CompanionBridgeMCP/internal/config"
	"github.com/Corphon/CompanionBridgeMCP/internal/di"
	"github.com/Corphon/CompanionBridgeMCP/internal/inference"
	"github.com/Corphon/CompanionBridgeMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	// 获取配置
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// ✅ 只从容器获取服务，不再创建新实例
	chatbotService, ok := container.Get("chatbot").(*services.ChatbotService)
	if !ok {
		return nil, fmt.Errorf("对话服务未正确初始化")
	}

	characterService, ok := container.Get("character").(*services.CharacterService)
	if !ok {
		return nil, fmt.Errorf("角色服务未正确初始化")
	}

	inferenceClient, ok := container.Get("inference").(*inference.Client)
	if !ok {
		return nil, fmt.Errorf("推理客户端未正确初始化")
	}

	// ✅ 创建API处理器 - 只传递从容器获取的服务
	handler := NewHandler(chatbotService, characterService, inferenceClient)

	// 状态广播器订阅推理健康事件
	handler.Broadcaster.Start(inferenceClient.Events())

	// 创建路由
	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// 启用CORS与请求ID
	r.Use(corsMiddleware())
	r.Use(RequestIDMiddleware())

	// 静态文件服务
	if cfg.StaticDir != "" {
		r.Static("/static", cfg.StaticDir)
	}

	// WebSocket 支持
	r.GET("/ws/status", handler.StatusWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		api.GET("/health", handler.Health)
		api.GET("/stats", handler.Stats)

		// 会话令牌签发
		api.POST("/auth/token", handler.IssueToken)

		// ===============================
		// 对话相关路由
		// ===============================
		chatGroup := api.Group("/chat")
		chatGroup.Use(APIKeyAuth(), SessionTokenAuth(), ChatRateLimit())
		{
			chatGroup.POST("", handler.Chat)
			chatGroup.POST("/analyze", handler.Analyze)
			chatGroup.GET("/history", handler.GetHistory)
			chatGroup.DELETE("/history", handler.ClearHistory)
			chatGroup.POST("/cancel", handler.CancelGeneration)
		}

		// ===============================
		// 设置相关路由
		// ===============================
		settingsGroup := api.Group("/settings")
		settingsGroup.Use(APIKeyAuth())
		{
			settingsGroup.GET("", handler.GetSettings)
			settingsGroup.PUT("", handler.UpdateSettings)
		}

		// ===============================
		// 角色相关路由
		// ===============================
		characterGroup := api.Group("/character")
		characterGroup.Use(APIKeyAuth())
		{
			characterGroup.GET("", handler.GetCharacter)
			characterGroup.GET("/list", handler.ListCharacters)
			characterGroup.POST("/reload", handler.ReloadCharacter)
		}
	}

	return r, nil
}
