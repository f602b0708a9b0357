package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Message is an immutable direct message between two users.
// ID and CreatedAt are assigned by the message store.
type Message struct {
	ID         uuid.UUID
	SenderID   string
	ReceiverID string
	Text       string
	File       *FileRef
	Lang       string
	CreatedAt  time.Time
}

// FileRef points to an attachment kept in the attachment store.
type FileRef struct {
	Name           string // original name given by the client
	StoredFilename string
}

// NewMessage is what the router hands to the store before ID and timestamp exist.
type NewMessage struct {
	SenderID   string
	ReceiverID string
	Text       string
	File       *FileRef
	Lang       string
}

// StoredFilename returns the attachment filename or "" when the message carries no file.
func (m Message) StoredFilename() string {
	if m.File == nil {
		return ""
	}
	return m.File.StoredFilename
}

// ConversationKey identifies the conversation between two users regardless of direction.
// Both IDs are length-prefixed so no pair of IDs can produce another pair's key,
// nor a key that starts with it.
func ConversationKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return strconv.Itoa(len(userA)) + ":" + userA + ":" + strconv.Itoa(len(userB)) + ":" + userB
}
