// internal/services/character_service.go
package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Corphon/CompanionBridgeMCP/internal/config"
	"github.com/Corphon/CompanionBridgeMCP/internal/models"
	"github.com/Corphon/CompanionBridgeMCP/internal/storage"
	"github.com/Corphon/CompanionBridgeMCP/internal/utils"
)

// 档案文件名约定
const (
	userProfileFile     = "user-profile.json"
	activeCharacterFile = "active-character.txt"
)

// profileDocument 是档案文件的通用外层结构（版本2.0格式）
type profileDocument struct {
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Character map[string]interface{} `json:"character,omitempty"`
	User      struct {
		Name            string                 `json:"name"`
		Gender          string                 `json:"gender"`
		Timezone        string                 `json:"timezone"`
		Backstory       string                 `json:"backstory"`
		Preferences     models.UserPreferences `json:"preferences"`
		MajorLifeEvents []string               `json:"majorLifeEvents"`
		Boundaries      string                 `json:"communicationBoundaries"`
	} `json:"user,omitempty"`
	SharedMemory struct {
		RoleplayEvents []string `json:"roleplayEvents"`
	} `json:"sharedMemory,omitempty"`
	Settings struct {
		EnableMemory           *bool  `json:"enableMemory"`
		EnableWebSearch        *bool  `json:"enableWebSearch"`
		WebSearchAPIKey        string `json:"webSearchApiKey"`
		DefaultActiveCharacter string `json:"defaultActiveCharacter"`
	} `json:"settings,omitempty"`
}

// CharacterService 负责角色档案与用户设置的加载、缓存与失效
// 所有加载操作幂等，可安全重复调用
type CharacterService struct {
	Storage       *storage.FileStorage
	encryptionKey string

	cacheMutex      sync.RWMutex
	activeCharacter *models.CharacterProfile
}

// NewCharacterService 创建角色服务
func NewCharacterService(profilesDir, encryptionKey string) (*CharacterService, error) {
	store, err := storage.NewFileStorage(profilesDir)
	if err != nil {
		return nil, fmt.Errorf("初始化档案存储失败: %w", err)
	}

	return &CharacterService{
		Storage:       store,
		encryptionKey: encryptionKey,
	}, nil
}

// ActiveCharacter 返回缓存的激活角色（可能为nil）
func (s *CharacterService) ActiveCharacter() *models.CharacterProfile {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()
	return s.activeCharacter
}

// ActiveCharacterName 返回激活角色名称
func (s *CharacterService) ActiveCharacterName() string {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()

	if s.activeCharacter == nil {
		return "Unknown"
	}
	return s.activeCharacter.CharacterName
}

// InvalidateCache 清空角色缓存，下次加载时强制重读
func (s *CharacterService) InvalidateCache() {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.activeCharacter = nil
}

// LoadActiveCharacter 加载指定角色，名称为空时加载配置的激活角色
// 任何失败都回退到默认角色，不向调用方返回错误
func (s *CharacterService) LoadActiveCharacter(characterName string) *models.CharacterProfile {
	logger := utils.GetLogger()

	settings := s.LoadUserSettings()
	userName := settings.UserName

	if characterName == "" {
		characterName = s.resolveActiveCharacterName()
	}

	if characterName == "" {
		logger.Info("No active character configured, using default", nil)
		return s.cacheProfile(defaultCharacter(userName))
	}

	doc, err := s.loadProfileDocument(characterName + ".json")
	if err != nil || doc.Type != "character" {
		logger.Warn("Character profile not found, using default", map[string]interface{}{
			"character": characterName,
		})
		return s.cacheProfile(defaultCharacter(userName))
	}

	profile := buildCharacterProfile(doc.Character, characterName, userName)
	return s.cacheProfile(profile)
}

// resolveActiveCharacterName 解析配置的激活角色名称
// 优先使用 user-profile.json 的设置，其次是 active-character.txt
func (s *CharacterService) resolveActiveCharacterName() string {
	if doc, err := s.loadProfileDocument(userProfileFile); err == nil {
		if doc.Settings.DefaultActiveCharacter != "" {
			return doc.Settings.DefaultActiveCharacter
		}
	}

	if s.Storage.Exists(activeCharacterFile) {
		if data, err := s.Storage.LoadFile(activeCharacterFile); err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// ListCharacterNames 列出档案目录中可选择的角色名称
// 用户档案文件不是角色，不计入列表
func (s *CharacterService) ListCharacterNames() ([]string, error) {
	files, err := s.Storage.ListFiles(".json")
	if err != nil {
		return nil, fmt.Errorf("列出角色档案失败: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		if file == userProfileFile {
			continue
		}
		names = append(names, strings.TrimSuffix(file, ".json"))
	}
	return names, nil
}

// LoadUserSettings 加载用户设置，文件缺失或解析失败时返回默认值
// 用户设置可以覆盖配置中的功能开关
func (s *CharacterService) LoadUserSettings() *models.UserSettings {
	cfg := config.GetCurrentConfig()

	settings := &models.UserSettings{
		UserName:        "User",
		UserGender:      "non-binary",
		Timezone:        "UTC",
		EnableMemory:    cfg.EnableMemory,
		EnableWebSearch: cfg.EnableWebSearch,
		WebSearchAPIKey: cfg.WebSearchAPIKey,
	}

	doc, err := s.loadProfileDocument(userProfileFile)
	if err != nil || doc.Type != "user" {
		return settings
	}

	if doc.User.Name != "" {
		settings.UserName = doc.User.Name
	}
	if doc.User.Gender != "" {
		settings.UserGender = doc.User.Gender
	}
	if doc.User.Timezone != "" {
		settings.Timezone = doc.User.Timezone
	}
	settings.UserBackstory = doc.User.Backstory
	settings.UserPreferences = doc.User.Preferences
	settings.MajorLifeEvents = doc.User.MajorLifeEvents
	settings.SharedRoleplayEvents = doc.SharedMemory.RoleplayEvents
	settings.CommunicationBoundaries = doc.User.Boundaries

	if doc.Settings.EnableMemory != nil {
		settings.EnableMemory = *doc.Settings.EnableMemory
	}
	if doc.Settings.EnableWebSearch != nil {
		settings.EnableWebSearch = *doc.Settings.EnableWebSearch
	}
	if doc.Settings.WebSearchAPIKey != "" {
		settings.WebSearchAPIKey = doc.Settings.WebSearchAPIKey
	}

	return settings
}

// UpdateSettings 更新用户档案中的运行时设置并持久化
// nil 表示保持对应开关不变，同时将功能开关同步到配置系统
func (s *CharacterService) UpdateSettings(enableMemory, enableWebSearch *bool, webSearchAPIKey, defaultActiveCharacter string) error {
	doc, err := s.loadProfileDocument(userProfileFile)
	if err != nil {
		doc = &profileDocument{Version: "2.0", Type: "user"}
	}

	if enableMemory != nil {
		doc.Settings.EnableMemory = enableMemory
	}
	if enableWebSearch != nil {
		doc.Settings.EnableWebSearch = enableWebSearch
	}
	if webSearchAPIKey != "" {
		doc.Settings.WebSearchAPIKey = webSearchAPIKey
	}
	if defaultActiveCharacter != "" {
		doc.Settings.DefaultActiveCharacter = defaultActiveCharacter
		s.InvalidateCache()
	}

	if err := s.saveProfileDocument(userProfileFile, doc); err != nil {
		return err
	}

	settings := s.LoadUserSettings()
	return config.UpdateFeatures(settings.EnableMemory, settings.EnableWebSearch, settings.WebSearchAPIKey)
}

// saveProfileDocument 持久化档案文件，配置了加密密钥时整体加密后写入
func (s *CharacterService) saveProfileDocument(filename string, doc *profileDocument) error {
	if s.encryptionKey == "" {
		return s.Storage.SaveJSON(filename, doc)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化档案失败: %w", err)
	}

	ciphertext, err := utils.Encrypt(string(data), s.encryptionKey)
	if err != nil {
		return fmt.Errorf("加密档案失败: %w", err)
	}
	return s.Storage.SaveFile(filename, []byte(ciphertext))
}

// loadProfileDocument 读取并解析档案文件
// 配置了加密密钥时明文与密文档案都可能存在，先按JSON解析，失败再解密重试
func (s *CharacterService) loadProfileDocument(filename string) (*profileDocument, error) {
	var doc profileDocument

	if s.encryptionKey == "" {
		if err := s.Storage.LoadJSON(filename, &doc); err != nil {
			return nil, err
		}
		if doc.Version != "2.0" {
			return nil, fmt.Errorf("档案格式无效: %s", filename)
		}
		return &doc, nil
	}

	data, err := s.Storage.LoadFile(filename)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &doc); err == nil && doc.Version == "2.0" {
		return &doc, nil
	}

	plaintext, decErr := utils.Decrypt(strings.TrimSpace(string(data)), s.encryptionKey)
	if decErr == nil {
		if err := json.Unmarshal([]byte(plaintext), &doc); err == nil && doc.Version == "2.0" {
			return &doc, nil
		}
	}

	return nil, fmt.Errorf("档案格式无效: %s", filename)
}

// cacheProfile 缓存并返回档案
func (s *CharacterService) cacheProfile(profile *models.CharacterProfile) *models.CharacterProfile {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.activeCharacter = profile
	return profile
}

// stringField 从原始档案字典中取字符串字段
func stringField(raw map[string]interface{}, key string) string {
	if value, ok := raw[key].(string); ok {
		return value
	}
	return ""
}

// mapField 从原始档案字典中取嵌套字典字段
func mapField(raw map[string]interface{}, key string) map[string]interface{} {
	if value, ok := raw[key].(map[string]interface{}); ok {
		return value
	}
	return nil
}

// buildCharacterProfile 从原始档案字典构建角色档案
func buildCharacterProfile(raw map[string]interface{}, fallbackName, userName string) *models.CharacterProfile {
	name := stringField(raw, "name")
	if name == "" {
		name = fallbackName
	}

	// avoidWords 为逗号分隔字符串
	avoidWords := []string{}
	for _, word := range strings.Split(stringField(raw, "avoidWords"), ",") {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			avoidWords = append(avoidWords, word)
		}
	}

	companionType := models.CompanionType(stringField(raw, "companionType"))
	if companionType == "" {
		companionType = models.CompanionFriend
	}

	gender := stringField(raw, "gender")
	if gender == "" {
		gender = "unknown"
	}

	return &models.CharacterProfile{
		CharacterString: formatCharacterProfile(raw),
		CharacterName:   name,
		AvoidWords:      avoidWords,
		UserName:        userName,
		CompanionType:   companionType,
		Gender:          gender,
		Role:            stringField(raw, "role"),
		Backstory:       stringField(raw, "backstory"),
		Lorebook:        mapField(raw, "lorebook"),
		TagSelections:   mapField(raw, "tagSelections"),
	}
}

// formatCharacterProfile 将档案字典拼装为展示文本，整体传给推理端
func formatCharacterProfile(raw map[string]interface{}) string {
	companionType := "Romantic"
	if stringField(raw, "companionType") == string(models.CompanionFriend) {
		companionType = "Platonic"
	}

	name := stringField(raw, "name")
	if name == "" {
		name = "Unknown"
	}
	gender := stringField(raw, "gender")
	if gender == "" {
		gender = "Unknown"
	}
	age := stringField(raw, "age")
	if age == "" {
		age = "Unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Character Profile: %s\n\n", name)
	fmt.Fprintf(&b, "Gender: %s\n", gender)
	fmt.Fprintf(&b, "Age: %s\n", age)
	fmt.Fprintf(&b, "Role: %s\n", stringField(raw, "role"))
	fmt.Fprintf(&b, "Companion Type: %s\n", companionType)

	// 人格内核优先级最高，放在档案最前面
	if kernel := strings.TrimSpace(stringField(raw, "personalityKernel")); kernel != "" {
		fmt.Fprintf(&b, "\n**CORE PERSONALITY (CRITICAL - OVERRIDE ALL DEFAULTS):**\n%s\n", kernel)
	}

	fmt.Fprintf(&b, "\nAppearance:\n%s\n", stringField(raw, "appearance"))
	fmt.Fprintf(&b, "\nPersonality Traits:\n%s\n", stringField(raw, "traits"))
	fmt.Fprintf(&b, "\nPersonal Interests/Domains of Expertise:\n%s\n", stringField(raw, "interests"))
	fmt.Fprintf(&b, "\nBackstory:\n%s\n", stringField(raw, "backstory"))
	fmt.Fprintf(&b, "\nCommunication Style:\n%s\n", stringField(raw, "communicationStyle"))
	fmt.Fprintf(&b, "\nAffection Style:\n%s\n", stringField(raw, "affectionStyle"))
	fmt.Fprintf(&b, "\nCommunication Boundaries:\n%s\n", stringField(raw, "boundaries"))
	fmt.Fprintf(&b, "\nWords/Phrases to Avoid:\n%s\n", stringField(raw, "avoidWords"))

	return b.String()
}

// defaultCharacter 未配置角色时的默认档案
func defaultCharacter(userName string) *models.CharacterProfile {
	return &models.CharacterProfile{
		CharacterString: "Character Profile: Default Character\n\n" +
			"This is a default character profile. Please select a character in the profile builder.\n",
		CharacterName: "Default Character",
		AvoidWords:    []string{},
		UserName:      userName,
		CompanionType: models.CompanionFriend,
	}
}
