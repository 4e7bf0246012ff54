package ws

import (
	"strings"
	"time"
)

// MessageType discriminates websocket messages. It mirrors the bus topic
// that produced the message.
type MessageType string

const (
	MessageObjectCreated MessageType = "object.created"
	MessageObjectUpdated MessageType = "object.updated"
	MessageObjectDeleted MessageType = "object.deleted"
	MessageJobCreated    MessageType = "job.created"
	MessageJobUpdated    MessageType = "job.updated"
)

// Family returns the part of the type before the dot ("object" or "job").
func (t MessageType) Family() string {
	family, _, _ := strings.Cut(string(t), ".")
	return family
}

// Message is the envelope for all websocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	Model     string      `json:"model,omitempty"`
	ObjectID  int64       `json:"object_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}
