package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"classifieds/internal/infrastructure/ratelimit"
	"classifieds/internal/usecase"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
)

const requestTimeout = 15 * time.Second

func decodeFrame(raw []byte) (*inboundFrame, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

func decodeData(frame *inboundFrame, v interface{}) error {
	if len(frame.Data) == 0 || string(frame.Data) == "null" {
		return nil
	}
	return json.Unmarshal(frame.Data, v)
}

// HandleClientMessage dispatches one frame from an active connection. Frames
// of one connection are handled in arrival order.
func (m *Manager) HandleClientMessage(client *Client, raw []byte) {
	frame, err := decodeFrame(raw)
	if err != nil {
		logger.Debug("WebSocket: malformed frame from %s: %v", client.UserID, err)
		m.sendError(client, errors.InvalidArgument("Invalid message format", err), "", "")
		return
	}

	switch frame.Type {
	case MessageTypePing:
		m.sendTo(client, EventPong, nil)

	case MessageTypeJoinChatRoom:
		m.handleJoinChatRoom(client, frame)

	case MessageTypeLeaveChatRoom:
		m.handleLeaveChatRoom(client, frame)

	case MessageTypeTyping:
		m.handleTyping(client, frame)

	case MessageTypeSendMessage:
		m.handleSendMessage(client, frame)

	case MessageTypeAuthenticate:
		m.sendError(client, errors.InvalidArgument("Connection is already authenticated", nil), frame.Type, "")

	default:
		logger.Debug("WebSocket: unknown message type '%s' from %s", frame.Type, client.UserID)
		m.sendError(client, errors.InvalidArgument("Unknown message type", nil), frame.Type, "")
	}
}

func (m *Manager) roomRequest(client *Client, frame *inboundFrame) (string, bool) {
	var data RoomData
	if err := decodeData(frame, &data); err != nil || strings.TrimSpace(data.SessionID) == "" {
		m.sendError(client, errors.InvalidArgument("session_id is required", err), frame.Type, "")
		return "", false
	}
	return data.SessionID, true
}

// handleJoinChatRoom admits participants only. Membership is in effect
// before the next frame from this connection is read.
func (m *Manager) handleJoinChatRoom(client *Client, frame *inboundFrame) {
	sessionID, ok := m.roomRequest(client, frame)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := m.chat.GetSession(ctx, sessionID, client.UserID); err != nil {
		m.sendError(client, err, frame.Type, "")
		return
	}

	m.join(client, chatRoom(sessionID))
	logger.Debug("WebSocket: %s joined %s", client.UserID, chatRoom(sessionID))
}

func (m *Manager) handleLeaveChatRoom(client *Client, frame *inboundFrame) {
	sessionID, ok := m.roomRequest(client, frame)
	if !ok {
		return
	}
	m.leave(client, chatRoom(sessionID))
}

// handleTyping relays to the other members of the room. Frames for rooms the
// connection has not joined, and frames over the rate limit, are dropped.
func (m *Manager) handleTyping(client *Client, frame *inboundFrame) {
	var data TypingData
	if err := decodeData(frame, &data); err != nil || data.SessionID == "" {
		return
	}
	room := chatRoom(data.SessionID)

	if m.opts.RateLimiter != nil {
		if allowed, _ := m.opts.RateLimiter.Allow(client.UserID, ratelimit.ActionTyping); !allowed {
			return
		}
	}

	payload, err := encodeEvent(EventTypingChanged, TypingChangedData{
		SessionID: data.SessionID,
		UserID:    client.UserID,
		IsTyping:  data.IsTyping,
	})
	if err != nil {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, member := client.rooms[room]; !member {
		return
	}
	m.broadcastRoomLocked(room, EventTypingChanged, payload, client)
}

// handleSendMessage goes through the chat use case, which publishes
// message.created to the room. The sender additionally gets an ack carrying
// its temp_id.
func (m *Manager) handleSendMessage(client *Client, frame *inboundFrame) {
	var data SendMessageData
	if err := decodeData(frame, &data); err != nil {
		m.sendError(client, errors.InvalidArgument("Invalid send_message data", err), frame.Type, "")
		return
	}
	if data.SessionID == "" {
		m.sendError(client, errors.InvalidArgument("session_id is required", nil), frame.Type, data.TempID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	message, err := m.chat.SendMessage(ctx, client.UserID, usecase.SendMessageInput{
		SessionID: data.SessionID,
		Content:   data.Content,
		Kind:      data.Kind,
		Media:     data.Media,
	})
	if err != nil {
		m.sendError(client, err, frame.Type, data.TempID)
		return
	}

	m.sendTo(client, EventMessageAck, MessageAckData{TempID: data.TempID, Message: message})
}
