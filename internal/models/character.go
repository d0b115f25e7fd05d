// internal/models/character.go
package models

// CompanionType 表示角色与用户的关系类型
type CompanionType string

const (
	CompanionFriend   CompanionType = "friend"
	CompanionRomantic CompanionType = "romantic"
)

// CharacterProfile 表示当前激活的角色档案
// CharacterString 是拼装好的展示文本，随请求整体传给推理端
type CharacterProfile struct {
	CharacterString string                 `json:"character_string"`
	CharacterName   string                 `json:"character_name"`
	AvoidWords      []string               `json:"avoid_words"`
	UserName        string                 `json:"user_name"`
	CompanionType   CompanionType          `json:"companion_type"`
	Gender          string                 `json:"gender,omitempty"`
	Role            string                 `json:"role,omitempty"`
	Backstory       string                 `json:"backstory,omitempty"`
	Lorebook        map[string]interface{} `json:"lorebook,omitempty"`
	TagSelections   map[string]interface{} `json:"tag_selections,omitempty"`
}

// UserPreferences 用户兴趣偏好
type UserPreferences struct {
	Music   []string `json:"music"`
	Books   []string `json:"books"`
	Movies  []string `json:"movies"`
	Hobbies []string `json:"hobbies"`
	Other   string   `json:"other,omitempty"`
}

// UserSettings 用户设置，每个消息处理周期重新加载一次
type UserSettings struct {
	UserName                string          `json:"user_name"`
	UserGender              string          `json:"user_gender"`
	Timezone                string          `json:"timezone"`
	UserBackstory           string          `json:"user_backstory,omitempty"`
	UserPreferences         UserPreferences `json:"user_preferences"`
	MajorLifeEvents         []string        `json:"major_life_events,omitempty"`
	SharedRoleplayEvents    []string        `json:"shared_roleplay_events,omitempty"`
	CommunicationBoundaries string          `json:"communication_boundaries,omitempty"`
	EnableMemory            bool            `json:"enable_memory"`
	EnableWebSearch         bool            `json:"enable_web_search"`
	WebSearchAPIKey         string          `json:"web_search_api_key,omitempty"`
}

// EnrichedCharacter 是角色档案与用户设置合并后的推理输入
// 只在单次生成调用期间存在，从不持久化
type EnrichedCharacter struct {
	CharacterProfile
	UserGender              string          `json:"user_gender,omitempty"`
	UserTimezone            string          `json:"user_timezone,omitempty"`
	UserBackstory           string          `json:"user_backstory,omitempty"`
	UserPreferences         UserPreferences `json:"user_preferences"`
	UserMajorLifeEvents     []string        `json:"user_major_life_events,omitempty"`
	SharedRoleplayEvents    []string        `json:"shared_roleplay_events,omitempty"`
	CommunicationBoundaries string          `json:"user_communication_boundaries,omitempty"`
}
