// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Corphon/CompanionBridgeMCP/internal/config"
	"github.com/Corphon/CompanionBridgeMCP/internal/di"
	"github.com/Corphon/CompanionBridgeMCP/internal/inference"
	"github.com/Corphon/CompanionBridgeMCP/internal/services"
	"github.com/Corphon/CompanionBridgeMCP/internal/utils"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
// 推理服务未就绪不视为致命错误：服务以降级状态启动，
// 后续对话请求在处理前重试初始化，持续失败则返回503
func InitServices() error {
	cfg := config.GetCurrentConfig()

	// 日志初始化
	logFile := filepath.Join(cfg.LogDir, fmt.Sprintf("server_%s.log", time.Now().Format("20060102")))
	if err := utils.InitLogger(logFile); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	container := di.GetContainer()

	// 角色与用户档案服务
	characterService, err := services.NewCharacterService(cfg.ProfilesDir, cfg.ProfileEncryptionKey)
	if err != nil {
		return fmt.Errorf("初始化角色服务失败: %w", err)
	}
	container.Register("character", characterService)

	// 推理服务客户端
	inferenceClient := inference.NewClient(cfg.InferenceBaseURL, cfg.RequestTimeout, cfg.GenerationTimeout)
	container.Register("inference", inferenceClient)

	// 对话编排服务
	chatbotService := services.NewChatbotService(inferenceClient, characterService)
	chatbotService.ReadyMaxAttempts = cfg.ReadyMaxAttempts
	chatbotService.ReadyRetryDelay = cfg.ReadyRetryDelay
	chatbotService.HealthCheckInterval = cfg.HealthCheckInterval
	container.Register("chatbot", chatbotService)

	// 等待推理服务就绪
	initCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ReadyMaxAttempts)*(cfg.ReadyRetryDelay+cfg.RequestTimeout)+10*time.Second)
	defer cancel()

	if err := chatbotService.Initialize(initCtx); err != nil {
		utils.GetLogger().Warn("Chatbot initialization deferred, starting degraded", map[string]interface{}{
			"error":         err.Error(),
			"inference_url": cfg.InferenceBaseURL,
		})
	}

	return nil
}

// Cleanup 停止后台任务并释放资源
func Cleanup() {
	container := di.GetContainer()

	if chatbot, ok := container.Get("chatbot").(*services.ChatbotService); ok && chatbot != nil {
		chatbot.Shutdown()
	}

	utils.GetLogger().Info("Services cleaned up", nil)
}
