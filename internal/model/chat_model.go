package model

import (
	"time"

	"github.com/google/uuid"
)

type Chat struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_chat_user_title,priority:1;index"`
	ChatId    string    `gorm:"type:varchar(64);not null"`
	Title     string    `gorm:"type:text;not null;uniqueIndex:idx_chat_user_title,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Chat) TableName() string {
	return "chats"
}
