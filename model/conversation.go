package model

// Conversation roles for the consultation rehearsal.
const (
	RoleDoctor = "doctor"
	RoleUser   = "user"
)

// ConversationMessage 模拟对话中的一轮发言，只存在于请求生命周期内，不落库。
type ConversationMessage struct {
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	Suggestions []string `json:"suggestions,omitempty"`
}
