package store

// Message is one entry in a chat transcript. Messages are immutable once
// appended; Number is assigned by the owner of the chat's history and is
// strictly increasing with no gaps within a chat.
type Message struct {
	From      string `json:"from"` // "user" | "bot"
	Text      string `json:"text"`
	ChatId    string `json:"chatId"`
	Number    uint   `json:"number"`
	Timestamp string `json:"timestamp"` // RFC3339
}

// ChatMeta is the per-chat index entry. It is written once, the first time a
// bot reply yields a usable title, and never mutated afterwards.
type ChatMeta struct {
	Id        string `json:"id"`
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"`
}

// Session is the live in-memory state of one connected user. It is mutated
// only by the goroutine that owns the user's websocket connection; the
// registry guarantees no two goroutines hold the same user concurrently.
type Session struct {
	UserId   string               `json:"user_id"`
	Language string               `json:"language"`
	History  map[string][]Message `json:"history"` // chatId -> ordered messages
	Chats    map[string]ChatMeta  `json:"chats"`   // title -> metadata, set-once
}

// NewSession returns an empty session for the given user.
func NewSession(userId, language string) *Session {
	return &Session{
		UserId:   userId,
		Language: language,
		History:  make(map[string][]Message),
		Chats:    make(map[string]ChatMeta),
	}
}

// EnsureChat initializes an exists-but-empty history for chatId. It reports
// whether the chat already existed, distinguishing "empty" from "absent".
func (s *Session) EnsureChat(chatId string) bool {
	if _, ok := s.History[chatId]; ok {
		return true
	}
	s.History[chatId] = []Message{}
	return false
}

// NextNumber returns the sequence number the next message appended to chatId
// will receive.
func (s *Session) NextNumber(chatId string) uint {
	return uint(len(s.History[chatId]))
}

// Append adds a message to its chat with the next sequence number and returns
// the stored message.
func (s *Session) Append(chatId, from, text, timestamp string) Message {
	msg := Message{
		From:      from,
		Text:      text,
		ChatId:    chatId,
		Number:    s.NextNumber(chatId),
		Timestamp: timestamp,
	}
	s.History[chatId] = append(s.History[chatId], msg)
	return msg
}

// HasTitle reports whether a chat with this title is already indexed.
func (s *Session) HasTitle(title string) bool {
	_, ok := s.Chats[title]
	return ok
}

// TurnCount counts the user messages in a chat, i.e. completed or in-flight
// exchanges.
func (s *Session) TurnCount(chatId string) int {
	n := 0
	for _, m := range s.History[chatId] {
		if m.From == "user" {
			n++
		}
	}
	return n
}

// FlatHistory returns every message of every chat, for full-session upserts.
func (s *Session) FlatHistory() []Message {
	var all []Message
	for _, msgs := range s.History {
		all = append(all, msgs...)
	}
	return all
}
