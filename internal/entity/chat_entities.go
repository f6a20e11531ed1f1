package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one persisted transcript entry. (UserId, ChatId, Seq) is
// unique; Seq is contiguous within a chat.
type ChatMessage struct {
	Id        uuid.UUID
	UserId    string
	ChatId    string
	Seq       uint
	Sender    string // "user" | "bot"
	Text      string
	Timestamp time.Time
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Chat is the per-chat metadata row. A title is recorded at most once per
// user; the row is never updated after insertion.
type Chat struct {
	Id        uuid.UUID
	UserId    string
	ChatId    string
	Title     string
	CreatedAt time.Time
}
