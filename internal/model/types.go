package model

import (
	"time"
	"unicode/utf8"
)

// MaxContentLen is the storage limit for message content, in code points.
// Content longer than this is rejected at admission, never truncated.
const MaxContentLen = 500

// User identifies one chat participant.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Message is a single persisted chat turn. ID is zero until the storage
// layer assigns one on durable write.
type Message struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Content    string    `json:"content"`
	IsFromUser bool      `json:"is_from_user"`
	Timestamp  time.Time `json:"timestamp"`
}

// ValidContent reports whether content fits within the storage limit.
func ValidContent(content string) bool {
	return utf8.RuneCountInString(content) <= MaxContentLen
}
