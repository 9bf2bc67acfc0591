// Package types contains the shared domain types for seqchat.
package types

import (
	"fmt"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FileRef describes an uploaded data file attached to a conversation.
type FileRef struct {
	Name string `json:"name"` // Original filename as uploaded
	Size int64  `json:"size"` // Size in bytes
	Path string `json:"path"` // Absolute path in the upload store
	Kind string `json:"kind"` // Short kind hint: "h5ad", "table", "archive", "file"
}

// HumanSize formats the file size for display.
func (f FileRef) HumanSize() string {
	const unit = 1024
	if f.Size < unit {
		return fmt.Sprintf("%d B", f.Size)
	}
	div, exp := int64(unit), 0
	for n := f.Size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(f.Size)/float64(div), "KMGTPE"[exp])
}

// Message is one conversational turn. Messages are append-only: once stored
// in a session they are never mutated, only viewed through recency windows.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Files     []FileRef `json:"files,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage creates a user message stamped with the current time.
func NewUserMessage(content string, files []FileRef) Message {
	return Message{Role: RoleUser, Content: content, Files: files, Timestamp: time.Now()}
}

// NewAssistantMessage creates an assistant message stamped with the current time.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}
