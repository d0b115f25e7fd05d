// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port        string `json:"port"`
	DataDir     string `json:"data_dir"`
	ProfilesDir string `json:"profiles_dir"`
	StaticDir   string `json:"static_dir"`
	LogDir      string `json:"log_dir"`
	DebugMode   bool   `json:"debug_mode"`

	// 推理服务相关配置
	InferenceBaseURL    string        `json:"inference_base_url"`
	RequestTimeout      time.Duration `json:"request_timeout"`
	GenerationTimeout   time.Duration `json:"generation_timeout"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	ReadyMaxAttempts    int           `json:"ready_max_attempts"`
	ReadyRetryDelay     time.Duration `json:"ready_retry_delay"`

	// 功能开关（用户设置可以覆盖）
	EnableMemory    bool   `json:"enable_memory"`
	EnableWebSearch bool   `json:"enable_web_search"`
	WebSearchAPIKey string `json:"web_search_api_key,omitempty"`

	// 安全相关配置，不写入配置文件
	SessionSecret        string `json:"-"`
	ProfileEncryptionKey string `json:"-"`
	APIKey               string `json:"-"`
}

// Load 从环境变量加载配置
func Load() (*AppConfig, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &AppConfig{
		Port:        getEnv("PORT", "8080"),
		DataDir:     getEnvPath("DATA_DIR", "data"),
		ProfilesDir: getEnvPath("PROFILES_DIR", filepath.Join("data", "profiles")),
		StaticDir:   getEnv("STATIC_DIR", "static"),
		LogDir:      getEnvPath("LOG_DIR", "logs"),
		DebugMode:   getEnvBool("DEBUG_MODE", true),

		InferenceBaseURL:    getEnv("INFERENCE_BASE_URL", "http://localhost:9001"),
		RequestTimeout:      getEnvDuration("INFERENCE_REQUEST_TIMEOUT", 15*time.Second),
		GenerationTimeout:   getEnvDuration("INFERENCE_GENERATION_TIMEOUT", 180*time.Second),
		HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
		ReadyMaxAttempts:    getEnvInt("READY_MAX_ATTEMPTS", 5),
		ReadyRetryDelay:     getEnvDuration("READY_RETRY_DELAY", 2*time.Second),

		EnableMemory:    getEnvBool("ENABLE_MEMORY", true),
		EnableWebSearch: getEnvBool("ENABLE_WEB_SEARCH", false),
		WebSearchAPIKey: getEnv("WEB_SEARCH_API_KEY", ""),

		SessionSecret:        getEnv("SESSION_SECRET", ""),
		ProfileEncryptionKey: getEnv("PROFILE_ENCRYPTION_KEY", ""),
		APIKey:               getEnv("API_KEY", ""),
	}

	if config.SessionSecret == "" {
		// 只记录警告，不返回错误，会话令牌功能在设置密钥前不可用
		log.Println("警告: 未设置SESSION_SECRET，会话令牌签发将被禁用")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt 获取整数类型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration 获取时间间隔类型环境变量（Go时长格式，如"30s"）
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	// 加载基础配置
	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = baseConfig

	// 尝试从文件加载已保存的配置（只合并功能开关与推理端地址）
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				if savedConfig.InferenceBaseURL != "" {
					currentConfig.InferenceBaseURL = savedConfig.InferenceBaseURL
				}
				currentConfig.EnableMemory = savedConfig.EnableMemory
				currentConfig.EnableWebSearch = savedConfig.EnableWebSearch
				if savedConfig.WebSearchAPIKey != "" {
					currentConfig.WebSearchAPIKey = savedConfig.WebSearchAPIKey
				}
			}
		}
	}

	// 保存初始配置到文件
	return saveConfigLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, _ := Load()
		return baseConfig
	}

	// 返回配置的副本
	configCopy := *currentConfig
	return &configCopy
}

// UpdateFeatures 更新功能开关并持久化
func UpdateFeatures(enableMemory, enableWebSearch bool, webSearchAPIKey string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.EnableMemory = enableMemory
	currentConfig.EnableWebSearch = enableWebSearch
	if webSearchAPIKey != "" {
		currentConfig.WebSearchAPIKey = webSearchAPIKey
	}

	return saveConfigLocked()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveConfigLocked()
}

// saveConfigLocked 持有写锁时保存配置
func saveConfigLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	// 确保目录存在
	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	// 序列化并保存
	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
