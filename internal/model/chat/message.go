package chat

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation turn. Content is immutable once committed,
// except for the trailing assistant message while a response is still
// streaming in.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
