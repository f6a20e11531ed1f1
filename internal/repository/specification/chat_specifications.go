package specification

import (
	"fmt"

	"gorm.io/gorm"
)

// OwnedByUser filters rows by the owning user id.
type OwnedByUser struct {
	UserId string
}

func (s OwnedByUser) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserId)
}

// ByChatId filters by chat thread id.
type ByChatId struct {
	ChatId string
}

func (s ByChatId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_id = ?", s.ChatId)
}

// ByTitle filters chat metadata by title.
type ByTitle struct {
	Title string
}

func (s ByTitle) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("title = ?", s.Title)
}

// OrderBy applies ordering
type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}
	return db.Order(fmt.Sprintf("%s %s", s.Field, direction))
}

// Pagination
type Pagination struct {
	Limit  int
	Offset int
}

func (s Pagination) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(s.Limit).Offset(s.Offset)
}
