package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_chat_message_seq,priority:1;index"`
	ChatId    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_chat_message_seq,priority:2"`
	Seq       uint      `gorm:"not null;uniqueIndex:idx_chat_message_seq,priority:3"`
	Sender    string    `gorm:"type:varchar(16);not null"`
	Text      string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
