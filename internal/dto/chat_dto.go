package dto

import "medibot-be/pkg/store"

// GetChatsResponse lists a user's chat index over REST.
type GetChatsResponse struct {
	Chats []store.ChatMeta `json:"chats"`
}

// PersistTurnMessage is the payload enqueued after every completed exchange.
// The consumer drains the queue sequentially, which serializes all writes
// for a user.
type PersistTurnMessage struct {
	UserId   string          `json:"user_id"`
	Messages []store.Message `json:"messages"`
	Chat     *store.ChatMeta `json:"chat,omitempty"` // set only when a title was registered this turn
}

// TurnCompletedEvent is published to NATS for downstream consumers.
type TurnCompletedEvent struct {
	UserId   string `json:"user_id"`
	ChatId   string `json:"chat_id"`
	Turns    int    `json:"turns"`
	Language string `json:"language"`
}
