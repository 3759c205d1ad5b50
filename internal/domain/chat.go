package domain

// OperatorChatName is the reserved name of the single operator ("DEV") chat row.
const OperatorChatName = "DEV"

// ChatKind mirrors Telegram chat types.
type ChatKind string

const (
	KindPrivate    ChatKind = "private"
	KindGroup      ChatKind = "group"
	KindSupergroup ChatKind = "supergroup"
	KindChannel    ChatKind = "channel"
)

// Chat is a registered chat row.
type Chat struct {
	ID   int64
	Kind ChatKind
	Name string
}

// IsOperator reports whether c is the operator chat.
func (c Chat) IsOperator() bool {
	return c.Name == OperatorChatName
}
