// internal/inference/client.go
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Corphon/CompanionBridgeMCP/internal/errors"
	"github.com/Corphon/CompanionBridgeMCP/internal/models"
	"github.com/Corphon/CompanionBridgeMCP/internal/utils"
)

// Client 是推理服务的弹性HTTP客户端
// 持有两个 http.Client：常规操作使用短超时，上下文生成使用长超时
// （大上下文生成可能耗时数分钟，健康检查与情绪分类应当秒级返回）
type Client struct {
	baseURL   string
	client    *http.Client // 健康检查、情绪分类、持久化、取消
	genClient *http.Client // 上下文生成

	// 后台健康轮询共享的咨询性状态
	// healthy 只用于上报，从不短路单个请求
	healthMutex sync.RWMutex
	healthy     bool

	// 轮询生命周期
	pollMutex sync.Mutex
	stopChan  chan struct{}

	// 健康状态事件，供前台（如WebSocket状态推送）订阅
	events chan HealthEvent
}

// HealthStatus 远端健康检查负载
type HealthStatus struct {
	Status string `json:"status"`
}

// HealthEvent 一次后台健康检查的结果
type HealthEvent struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GenerationContext 是一次上下文生成请求的完整输入
// 每轮对话临时拼装，从不持久化
type GenerationContext struct {
	Text                string                    `json:"text"`
	EmotionData         *models.EmotionResult     `json:"emotion_data"`
	ConversationHistory []models.ConversationTurn `json:"conversation_history"`
	CharacterProfile    *models.EnrichedCharacter `json:"character_profile"`
	EnableMemory        bool                      `json:"enable_memory"`
	EnableWebSearch     bool                      `json:"enable_web_search"`
	WebSearchAPIKey     string                    `json:"web_search_api_key,omitempty"`
}

// NewClient 创建推理服务客户端
func NewClient(baseURL string, requestTimeout, generationTimeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9001"
	}

	return &Client{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: requestTimeout},
		genClient: &http.Client{Timeout: generationTimeout},
		events:    make(chan HealthEvent, 16),
	}
}

// BaseURL 返回客户端指向的远端地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Healthy 返回最近一次健康检查的结果（咨询性，不作为请求门禁）
func (c *Client) Healthy() bool {
	c.healthMutex.RLock()
	defer c.healthMutex.RUnlock()
	return c.healthy
}

// Events 返回健康状态事件通道
func (c *Client) Events() <-chan HealthEvent {
	return c.events
}

// setHealthy 更新健康标志并发布事件（通道满时丢弃，不阻塞轮询）
func (c *Client) setHealthy(healthy bool, checkErr error) {
	c.healthMutex.Lock()
	c.healthy = healthy
	c.healthMutex.Unlock()

	event := HealthEvent{
		Healthy:   healthy,
		Timestamp: time.Now(),
	}
	if checkErr != nil {
		event.Error = checkErr.Error()
	}

	select {
	case c.events <- event:
	default:
	}
}

// CheckHealth 执行一次健康检查，单次往返，不在内部重试
func (c *Client) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.doJSON(ctx, c.client, http.MethodGet, "/health", nil, &status); err != nil {
		return nil, errors.WrapError(err, "推理服务健康检查失败", errors.ErrorTypeUnreachable)
	}
	return &status, nil
}

// WaitForReady 是启动门禁：轮询健康检查直到成功或尝试次数耗尽
// 失败时编排器不得进入就绪状态
func (c *Client) WaitForReady(ctx context.Context, maxAttempts int, retryDelay time.Duration) error {
	logger := utils.GetLogger()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if _, err := c.CheckHealth(ctx); err == nil {
			logger.Info("Inference service is ready", map[string]interface{}{
				"attempt": attempt,
			})
			c.setHealthy(true, nil)
			return nil
		}

		logger.Warnf("Waiting for inference service... (%d/%d)", attempt, maxAttempts)

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return errors.NewNotReadyError("等待推理服务就绪被取消", ctx.Err())
		case <-time.After(retryDelay):
		}
	}

	return errors.NewNotReadyError(
		fmt.Sprintf("推理服务在%d次尝试后仍未就绪", maxAttempts), nil)
}

// StartHealthChecks 启动后台周期性健康轮询
// 失败只记录日志并计数，从不向调用方传播
func (c *Client) StartHealthChecks(interval time.Duration) {
	c.pollMutex.Lock()
	defer c.pollMutex.Unlock()

	if c.stopChan != nil {
		return // 已在运行
	}

	stop := make(chan struct{})
	c.stopChan = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		metrics := utils.GetMetricsCollector()
		logger := utils.GetLogger()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), c.client.Timeout)
				_, err := c.CheckHealth(ctx)
				cancel()

				if err != nil {
					metrics.IncrementCounter(utils.MetricHealthCheckFailed)
					logger.Warn("Inference service health check failed", map[string]interface{}{
						"error": err.Error(),
					})
					c.setHealthy(false, err)
				} else {
					metrics.IncrementCounter(utils.MetricHealthCheckOK)
					c.setHealthy(true, nil)
				}
			}
		}
	}()
}

// StopHealthChecks 停止后台健康轮询
func (c *Client) StopHealthChecks() {
	c.pollMutex.Lock()
	defer c.pollMutex.Unlock()

	if c.stopChan != nil {
		close(c.stopChan)
		c.stopChan = nil
	}
}

// ClassifyEmotion 调用远端情绪分类并映射为 EmotionResult
// score 缺失或非数值视为协议违规，绝不静默替换默认情绪
func (c *Client) ClassifyEmotion(ctx context.Context, text string) (*models.EmotionResult, error) {
	request := map[string]string{"text": text}

	// 远端返回 {label, score, top_emotions, intensity, category}
	var response struct {
		Label       string   `json:"label"`
		Score       *float64 `json:"score"`
		TopEmotions []struct {
			Label string  `json:"label"`
			Score float64 `json:"score"`
		} `json:"top_emotions"`
		Intensity string `json:"intensity"`
		Category  string `json:"category"`
	}

	if err := c.doJSON(ctx, c.client, http.MethodPost, "/infer/emotion", request, &response); err != nil {
		return nil, errors.WrapError(err, "情绪分类失败", errors.ErrorTypeRemote)
	}

	if response.Score == nil {
		return nil, errors.NewProtocolError(
			"推理服务返回的情绪结果缺少confidence字段", nil)
	}

	scores := make(map[string]float64, len(response.TopEmotions))
	for _, item := range response.TopEmotions {
		scores[item.Label] = item.Score
	}

	return &models.EmotionResult{
		Emotion:    response.Label,
		Confidence: *response.Score,
		Scores:     scores,
		Intensity:  response.Intensity,
		Category:   response.Category,
	}, nil
}

// GenerateWithContext 调用远端上下文感知生成，使用长超时客户端
func (c *Client) GenerateWithContext(ctx context.Context, genCtx *GenerationContext) (*models.GenerationResult, error) {
	var result models.GenerationResult
	if err := c.doJSON(ctx, c.genClient, http.MethodPost, "/infer/llm/context", genCtx, &result); err != nil {
		return nil, errors.WrapError(err, "上下文生成失败", errors.ErrorTypeRemote)
	}

	utils.GetLogger().Info("LLM inference completed", map[string]interface{}{
		"tokens_generated": result.TokensGenerated,
	})

	return &result, nil
}

// SaveConversation 将会话记录写入长期记忆，尽力而为
// 调用方应将失败视为非致命
func (c *Client) SaveConversation(ctx context.Context, record *models.ConversationRecord) error {
	var ack map[string]interface{}
	if err := c.doJSON(ctx, c.client, http.MethodPost, "/mcp/save_conversation", record, &ack); err != nil {
		return errors.NewPersistenceError("保存会话到记忆失败", err)
	}
	return nil
}

// Cancel 向远端发送取消信号，尽力而为
// 取消失败只记录，不升级；本地等待由调用方的context负责放弃
func (c *Client) Cancel(ctx context.Context, sessionID, requestID string) error {
	request := map[string]string{
		"session_id": sessionID,
		"request_id": requestID,
	}

	utils.GetMetricsCollector().IncrementCounter(utils.MetricCancelRequests)

	var ack map[string]interface{}
	if err := c.doJSON(ctx, c.client, http.MethodPost, "/cancel", request, &ack); err != nil {
		utils.GetLogger().Warn("Failed to cancel inference request", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return errors.WrapError(err, "取消推理请求失败", errors.ErrorTypeRemote)
	}
	return nil
}

// doJSON 执行一次JSON往返并做结构化错误翻译：
// 连接失败 → unreachable，超时 → timeout，
// 非2xx → remote（携带远端detail），负载解析失败 → protocol
func (c *Client) doJSON(ctx context.Context, client *http.Client, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return errors.NewProcessingError("序列化请求失败", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.NewProcessingError("创建请求失败", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || isTimeout(err) {
			return errors.NewTimeoutError(fmt.Sprintf("请求超时 %s", path), err)
		}
		return errors.NewUnreachableError(fmt.Sprintf("推理服务不可达 %s", path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 远端错误负载形如 {"detail": "..."}
		detail := ""
		var errPayload struct {
			Detail string `json:"detail"`
		}
		if data, readErr := io.ReadAll(resp.Body); readErr == nil {
			if json.Unmarshal(data, &errPayload) == nil {
				detail = errPayload.Detail
			}
		}
		return errors.NewRemoteError(
			fmt.Sprintf("推理服务返回错误(%d)", resp.StatusCode), detail, nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.NewProtocolError(fmt.Sprintf("解析响应失败 %s", path), err)
		}
	}

	return nil
}

// isTimeout 判断传输层错误是否为超时
func isTimeout(err error) bool {
	type timeout interface {
		Timeout() bool
	}

	for err != nil {
		if t, ok := err.(timeout); ok && t.Timeout() {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return false
}
