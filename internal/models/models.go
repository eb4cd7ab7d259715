package models

import "time"

// User represents a bot user identified by their Telegram username
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Message represents one persisted user message. Text is stored lowercased.
type Message struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageCount is an aggregated message text with its frequency across all users
type MessageCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}
