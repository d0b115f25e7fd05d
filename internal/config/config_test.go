// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupConfigTest 指向临时目录，避免在工作目录创建文件
func setupConfigTest(t *testing.T) string {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "config_test_*")
	if err != nil {
		t.Fatalf("创建临时测试目录失败: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	t.Setenv("DATA_DIR", filepath.Join(tempDir, "data"))
	t.Setenv("PROFILES_DIR", filepath.Join(tempDir, "profiles"))
	t.Setenv("LOG_DIR", filepath.Join(tempDir, "logs"))

	return tempDir
}

// TestLoadDefaults 测试环境变量缺失时的默认值
func TestLoadDefaults(t *testing.T) {
	setupConfigTest(t)
	t.Setenv("PORT", "")
	t.Setenv("INFERENCE_BASE_URL", "")

	config, err := Load()
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if config.Port != "8080" {
		t.Errorf("默认端口应为8080，实际: %q", config.Port)
	}
	if config.InferenceBaseURL != "http://localhost:9001" {
		t.Errorf("默认推理地址不正确，实际: %q", config.InferenceBaseURL)
	}
	if config.RequestTimeout != 15*time.Second {
		t.Errorf("默认请求超时应为15s，实际: %v", config.RequestTimeout)
	}
	if config.GenerationTimeout != 180*time.Second {
		t.Errorf("默认生成超时应为180s，实际: %v", config.GenerationTimeout)
	}
	if config.ReadyMaxAttempts != 5 {
		t.Errorf("默认就绪尝试次数应为5，实际: %d", config.ReadyMaxAttempts)
	}
}

// TestLoadFromEnvironment 测试环境变量覆盖默认值
func TestLoadFromEnvironment(t *testing.T) {
	setupConfigTest(t)
	t.Setenv("PORT", "9090")
	t.Setenv("INFERENCE_BASE_URL", "http://inference:8000")
	t.Setenv("INFERENCE_REQUEST_TIMEOUT", "3s")
	t.Setenv("READY_MAX_ATTEMPTS", "7")
	t.Setenv("ENABLE_MEMORY", "false")

	config, err := Load()
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if config.Port != "9090" {
		t.Errorf("端口应被覆盖，实际: %q", config.Port)
	}
	if config.InferenceBaseURL != "http://inference:8000" {
		t.Errorf("推理地址应被覆盖，实际: %q", config.InferenceBaseURL)
	}
	if config.RequestTimeout != 3*time.Second {
		t.Errorf("请求超时应被覆盖，实际: %v", config.RequestTimeout)
	}
	if config.ReadyMaxAttempts != 7 {
		t.Errorf("就绪尝试次数应被覆盖，实际: %d", config.ReadyMaxAttempts)
	}
	if config.EnableMemory {
		t.Error("记忆开关应被覆盖为false")
	}
}

// TestInvalidEnvValuesFallBack 测试非法环境变量值回退到默认
func TestInvalidEnvValuesFallBack(t *testing.T) {
	setupConfigTest(t)
	t.Setenv("READY_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("INFERENCE_REQUEST_TIMEOUT", "not-a-duration")

	config, err := Load()
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if config.ReadyMaxAttempts != 5 {
		t.Errorf("非法整数应回退到默认值，实际: %d", config.ReadyMaxAttempts)
	}
	if config.RequestTimeout != 15*time.Second {
		t.Errorf("非法时长应回退到默认值，实际: %v", config.RequestTimeout)
	}
}

// TestInitConfigPersistsAndMerges 测试配置持久化与重启后的合并
func TestInitConfigPersistsAndMerges(t *testing.T) {
	tempDir := setupConfigTest(t)
	dataDir := filepath.Join(tempDir, "data")

	if err := InitConfig(dataDir); err != nil {
		t.Fatalf("初始化配置系统失败: %v", err)
	}

	if err := UpdateFeatures(false, true, "search-key"); err != nil {
		t.Fatalf("更新功能开关失败: %v", err)
	}

	// 重新初始化，应合并已保存的功能开关
	if err := InitConfig(dataDir); err != nil {
		t.Fatalf("重新初始化失败: %v", err)
	}

	config := GetCurrentConfig()
	if config.EnableMemory {
		t.Error("重启后记忆开关应保持禁用")
	}
	if !config.EnableWebSearch {
		t.Error("重启后搜索开关应保持启用")
	}
	if config.WebSearchAPIKey != "search-key" {
		t.Errorf("重启后搜索密钥应保留，实际: %q", config.WebSearchAPIKey)
	}
}

// TestGetCurrentConfigReturnsCopy 测试返回副本而不是共享指针
func TestGetCurrentConfigReturnsCopy(t *testing.T) {
	tempDir := setupConfigTest(t)
	if err := InitConfig(filepath.Join(tempDir, "data")); err != nil {
		t.Fatalf("初始化配置系统失败: %v", err)
	}

	first := GetCurrentConfig()
	first.Port = "mutated"

	second := GetCurrentConfig()
	if second.Port == "mutated" {
		t.Error("修改返回的配置不应影响全局配置")
	}
}
