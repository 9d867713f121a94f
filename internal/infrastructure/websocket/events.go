package websocket

import (
	"encoding/json"
	"time"

	"classifieds/internal/domain/entity"
)

// Client to server frame types.
const (
	MessageTypeAuthenticate  = "authenticate"
	MessageTypeJoinChatRoom  = "join_chat_room"
	MessageTypeLeaveChatRoom = "leave_chat_room"
	MessageTypeTyping        = "typing"
	MessageTypeSendMessage   = "send_message"
	MessageTypePing          = "ping"
)

// Server to client event types.
const (
	EventAuthenticated       = "authenticated"
	EventMessageCreated      = "message.created"
	EventMessageAck          = "message.ack"
	EventNotificationCreated = "notification.created"
	EventPresenceChanged     = "presence.changed"
	EventTypingChanged       = "typing.changed"
	EventSessionReplaced     = "session.replaced"
	EventPong                = "pong"
	EventError               = "error"
)

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Event is the envelope of every server frame.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// inboundFrame defers decoding data until the type is known.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type AuthenticateData struct {
	Token string `json:"token"`
}

type RoomData struct {
	SessionID string `json:"session_id"`
}

type TypingData struct {
	SessionID string `json:"session_id"`
	IsTyping  bool   `json:"is_typing"`
}

type SendMessageData struct {
	SessionID string             `json:"session_id"`
	Content   string             `json:"content"`
	Kind      entity.MessageKind `json:"kind"`
	Media     *entity.MediaRef   `json:"media,omitempty"`
	TempID    string             `json:"temp_id,omitempty"`
}

type AuthenticatedData struct {
	UserID string `json:"user_id"`
}

type MessageCreatedData struct {
	SessionID string          `json:"session_id"`
	Message   *entity.Message `json:"message"`
}

type MessageAckData struct {
	TempID  string          `json:"temp_id,omitempty"`
	Message *entity.Message `json:"message"`
}

type NotificationCreatedData struct {
	Event *entity.Notification `json:"event"`
}

type PresenceChangedData struct {
	UserID       string     `json:"user_id"`
	Status       string     `json:"status"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
}

type TypingChangedData struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	IsTyping  bool   `json:"is_typing"`
}

type ErrorData struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	RequestType string `json:"request_type,omitempty"`
	TempID      string `json:"temp_id,omitempty"`
}

func encodeEvent(eventType string, data interface{}) ([]byte, error) {
	if data == nil {
		data = struct{}{}
	}
	return json.Marshal(Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func userRoom(userID string) string {
	return "user:" + userID
}

func chatRoom(sessionID string) string {
	return "chat:" + sessionID
}
