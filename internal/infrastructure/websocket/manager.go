package websocket

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/service"
	"classifieds/internal/infrastructure/metrics"
	"classifieds/internal/infrastructure/presence"
	"classifieds/internal/infrastructure/ratelimit"
	"classifieds/internal/usecase"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
)

// Authenticator resolves a bearer credential to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Identity, error)
}

// ChatService is the part of the chat use case the gateway drives.
type ChatService interface {
	GetSession(ctx context.Context, sessionID, userID string) (*entity.ChatSession, error)
	SendMessage(ctx context.Context, userID string, input usecase.SendMessageInput) (*entity.Message, error)
}

type Options struct {
	AuthTimeout time.Duration
	SendBuffer  int
	Metrics     *metrics.Collectors
	// RateLimiter, when set, throttles typing frames.
	RateLimiter *ratelimit.RateLimiter
}

// Manager owns every connection of this process. It routes events into
// per-user and per-session rooms and keeps the presence registry in step
// with connection lifecycles.
type Manager struct {
	registry *presence.Registry
	auth     Authenticator
	chat     ChatService
	opts     Options

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	closing bool
	wg      sync.WaitGroup
}

func NewManager(registry *presence.Registry, auth Authenticator, opts Options) *Manager {
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 10 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	return &Manager{
		registry: registry,
		auth:     auth,
		opts:     opts,
		clients:  make(map[*Client]struct{}),
		rooms:    make(map[string]map[*Client]struct{}),
	}
}

// UseChatService wires the chat use case. It must be called before serving connections.
func (m *Manager) UseChatService(chat ChatService) {
	m.chat = chat
}

// ServeConn runs conn until it closes. token may be empty, in which case the
// first frame must be an authenticate frame.
func (m *Manager) ServeConn(conn *websocket.Conn, token string) {
	client := newClient(conn, m.opts.SendBuffer)
	conn.SetReadLimit(maxMessageSize)

	m.mu.Lock()
	closing := m.closing
	if !closing {
		m.wg.Add(1)
	}
	m.mu.Unlock()
	if closing {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	defer m.wg.Done()
	go client.writePump()

	client.state = stateAuthenticating
	identity, err := m.authenticate(client, token)
	if err != nil {
		logger.Warn("WebSocket: authentication failed for connection %s: %v", client.ID, err)
		m.closeWithError(client, err, MessageTypeAuthenticate)
		return
	}

	if !m.activate(client, identity.UserID) {
		m.closeWithError(client, errors.StorageUnavailable("Server is shutting down", nil), MessageTypeAuthenticate)
		return
	}
	defer m.teardown(client, websocket.CloseNormalClosure)

	m.readLoop(client)
}

func (m *Manager) authenticate(client *Client, token string) (*service.Identity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.AuthTimeout)
	defer cancel()

	if token == "" {
		client.conn.SetReadDeadline(time.Now().Add(m.opts.AuthTimeout))
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return nil, errors.AuthTimeout("Authentication not completed in time")
			}
			return nil, errors.Unauthorized("Connection closed before authentication", err)
		}

		frame, err := decodeFrame(raw)
		if err != nil || frame.Type != MessageTypeAuthenticate {
			return nil, errors.Unauthorized("First frame must authenticate", err)
		}
		var data AuthenticateData
		if err := decodeData(frame, &data); err != nil {
			return nil, errors.Unauthorized("Malformed authenticate frame", err)
		}
		token = data.Token
	}

	type result struct {
		identity *service.Identity
		err      error
	}
	done := make(chan result, 1)
	go func() {
		identity, err := m.auth.Authenticate(ctx, token)
		done <- result{identity, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.identity, nil
	case <-ctx.Done():
		return nil, errors.AuthTimeout("Authentication not completed in time")
	}
}

// activate registers client for userID, replacing any older connection.
func (m *Manager) activate(client *Client, userID string) bool {
	now := time.Now()

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return false
	}
	replaced, ok := m.registry.Register(userID, client, now)
	if !ok {
		m.mu.Unlock()
		return false
	}
	client.UserID = userID
	client.state = stateActive
	m.clients[client] = struct{}{}
	m.joinLocked(client, userRoom(userID))
	m.sendTo(client, EventAuthenticated, AuthenticatedData{UserID: userID})
	m.mu.Unlock()

	m.opts.Metrics.ConnectionOpened()
	logger.Info("WebSocket: client %s authenticated as %s", client.ID, userID)

	if old, ok := replaced.(*Client); ok && old != nil {
		logger.Info("WebSocket: connection %s for %s superseded by %s", old.ID, userID, client.ID)
		m.sendTo(old, EventSessionReplaced, nil)
		m.teardown(old, websocket.CloseNormalClosure)
		return true
	}

	client.presenceMu.Lock()
	defer client.presenceMu.Unlock()
	// A teardown that already ran owns the offline event; online must not follow it.
	m.mu.RLock()
	active := client.state == stateActive
	m.mu.RUnlock()
	if active {
		m.broadcastPresence(userID, PresenceOnline, nil, client)
	}
	return true
}

// teardown is idempotent. The presence-offline event is only broadcast when
// this connection still owned the user's registry entry.
func (m *Manager) teardown(client *Client, code int) {
	client.teardownOnce.Do(func() {
		now := time.Now()

		m.mu.Lock()
		wasActive := client.state == stateActive
		client.state = stateClosed
		for room := range client.rooms {
			m.leaveLocked(client, room)
		}
		delete(m.clients, client)
		offline := false
		if wasActive {
			offline = m.registry.Unregister(client.UserID, client, now)
		}
		m.mu.Unlock()

		client.shutdown(code)
		if !wasActive {
			return
		}

		m.opts.Metrics.ConnectionClosed()
		logger.Info("WebSocket: client %s for %s disconnected", client.ID, client.UserID)
		if offline {
			client.presenceMu.Lock()
			m.broadcastPresence(client.UserID, PresenceOffline, &now, nil)
			client.presenceMu.Unlock()
		}
	})
}

func (m *Manager) closeWithError(client *Client, err error, requestType string) {
	m.sendError(client, err, requestType, "")
	client.state = stateClosed
	client.shutdown(websocket.ClosePolicyViolation)
}

func (m *Manager) readLoop(client *Client) {
	conn := client.conn
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error for %s: %v", client.UserID, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		m.HandleClientMessage(client, raw)
	}
}

func (m *Manager) joinLocked(client *Client, room string) {
	members, ok := m.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		m.rooms[room] = members
	}
	members[client] = struct{}{}
	client.rooms[room] = struct{}{}
}

func (m *Manager) leaveLocked(client *Client, room string) {
	if members, ok := m.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
	delete(client.rooms, room)
}

func (m *Manager) join(client *Client, room string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if client.state == stateActive {
		m.joinLocked(client, room)
	}
}

func (m *Manager) leave(client *Client, room string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(client, room)
}

func (m *Manager) inRoom(client *Client, room string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := client.rooms[room]
	return ok
}

// RoomSize reports how many connections are in a room.
func (m *Manager) RoomSize(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}

// sendTo queues one event for one client, logging when it cannot be taken.
func (m *Manager) sendTo(client *Client, eventType string, data interface{}) bool {
	payload, err := encodeEvent(eventType, data)
	if err != nil {
		logger.Error("WebSocket: encoding %s: %v", eventType, err)
		return false
	}
	return m.deliver(client, eventType, payload)
}

func (m *Manager) deliver(sink presence.Sink, eventType string, payload []byte) bool {
	if sink.Deliver(payload) {
		return true
	}
	m.opts.Metrics.EventDropped(eventType)
	recipient := sink.ConnID()
	if client, ok := sink.(*Client); ok && client.UserID != "" {
		recipient = client.UserID
	}
	logger.LogDeliveryFailure(recipient, eventType, errors.DeliveryFailed(recipient, eventType, nil))
	return false
}

func (m *Manager) sendError(client *Client, err error, requestType, tempID string) {
	data := ErrorData{
		Code:        errors.CodeOf(err),
		Message:     "An unexpected error occurred",
		RequestType: requestType,
		TempID:      tempID,
	}
	if appErr, ok := errors.AsAppError(err); ok {
		data.Message = appErr.Message
	}
	m.sendTo(client, EventError, data)
}

// broadcastRoomLocked queues payload for every member of room except skip.
// Callers hold m.mu so membership cannot change mid-broadcast.
func (m *Manager) broadcastRoomLocked(room, eventType string, payload []byte, skip *Client) {
	for member := range m.rooms[room] {
		if member == skip {
			continue
		}
		m.deliver(member, eventType, payload)
	}
}

func (m *Manager) broadcastPresence(userID, status string, lastActiveAt *time.Time, skip *Client) {
	payload, err := encodeEvent(EventPresenceChanged, PresenceChangedData{
		UserID:       userID,
		Status:       status,
		LastActiveAt: lastActiveAt,
	})
	if err != nil {
		logger.Error("WebSocket: encoding presence: %v", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for client := range m.clients {
		if client == skip || client.UserID == userID || client.state != stateActive {
			continue
		}
		m.deliver(client, EventPresenceChanged, payload)
	}
}

// PublishMessageCreated delivers message.created to every member of the
// session room. Members that are offline miss it and reconcile on fetch.
func (m *Manager) PublishMessageCreated(sessionID string, message *entity.Message) {
	payload, err := encodeEvent(EventMessageCreated, MessageCreatedData{SessionID: sessionID, Message: message})
	if err != nil {
		logger.Error("WebSocket: encoding message %s: %v", message.ID, err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	m.broadcastRoomLocked(chatRoom(sessionID), EventMessageCreated, payload, nil)
}

// PublishNotification delivers to the recipient's private room when the
// recipient has a registered connection.
func (m *Manager) PublishNotification(notification *entity.Notification) error {
	sink, ok := m.registry.Lookup(notification.RecipientID)
	if !ok {
		return nil
	}

	payload, err := encodeEvent(EventNotificationCreated, NotificationCreatedData{Event: notification})
	if err != nil {
		return errors.DeliveryFailed(notification.RecipientID, EventNotificationCreated, err)
	}
	if !sink.Deliver(payload) {
		m.opts.Metrics.EventDropped(EventNotificationCreated)
		return errors.DeliveryFailed(notification.RecipientID, EventNotificationCreated, nil)
	}
	return nil
}

// ConnectedClients reports active connections.
func (m *Manager) ConnectedClients() int {
	return m.registry.Count()
}

// Close tears down every connection, broadcasting offline for each, then
// clears the registry. New connections are refused afterwards.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	clients := make([]*Client, 0, len(m.clients))
	for client := range m.clients {
		clients = append(clients, client)
	}
	m.mu.Unlock()

	for _, client := range clients {
		m.teardown(client, websocket.CloseGoingAway)
	}
	m.registry.Close()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
