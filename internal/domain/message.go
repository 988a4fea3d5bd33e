package domain

import "time"

// Message senders.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// ChatMessage is one entry of the assistant conversation.
type ChatMessage struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Sender     string    `json:"sender"`
	Timestamp  time.Time `json:"timestamp"`
	NavigateTo string    `json:"navigateTo,omitempty"`
}
