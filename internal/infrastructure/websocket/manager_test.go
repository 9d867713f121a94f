package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memory "classifieds/internal/adapter/repository"
	"classifieds/internal/domain/entity"
	"classifieds/internal/infrastructure/jwtauth"
	"classifieds/internal/infrastructure/presence"
	"classifieds/internal/infrastructure/ratelimit"
	"classifieds/internal/usecase"
	"classifieds/pkg/errors"
	"classifieds/pkg/utils"
)

const waitFor = 3 * time.Second

type gateway struct {
	manager       *Manager
	registry      *presence.Registry
	chat          *usecase.ChatUseCase
	notifications *usecase.NotificationUseCase
	authority     *jwtauth.Authority
	url           string
}

func newGateway(t *testing.T, opts Options) *gateway {
	t.Helper()
	ctx := context.Background()

	users := memory.NewMemoryUserRepository()
	for _, id := range []string{"alice", "bob", "carol"} {
		require.NoError(t, users.Create(ctx, &entity.User{ID: id, Username: id, Status: entity.UserStatusActive}))
	}
	require.NoError(t, users.Create(ctx, &entity.User{ID: "sam", Status: entity.UserStatusSuspended}))

	authority := jwtauth.NewAuthority("test-secret", time.Hour)
	auth := usecase.NewAuthUseCase(authority, users)
	registry := presence.NewRegistry(nil)

	if opts.AuthTimeout == 0 {
		opts.AuthTimeout = 300 * time.Millisecond
	}
	manager := NewManager(registry, auth, opts)
	notifications := usecase.NewNotificationUseCase(memory.NewMemoryNotificationRepository(), manager, nil)
	chat := usecase.NewChatUseCase(memory.NewMemoryChatRepository(), notifications, manager, usecase.ChatOptions{Accounts: auth})
	manager.UseChatService(chat)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		manager.ServeConn(conn, r.URL.Query().Get("token"))
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		manager.Close(ctx)
		server.Close()
	})

	return &gateway{
		manager:       manager,
		registry:      registry,
		chat:          chat,
		notifications: notifications,
		authority:     authority,
		url:           "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (g *gateway) dialRaw(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := g.url
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// connect dials as userID and waits for the authenticated event.
func (g *gateway) connect(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := g.authority.Issue(userID, "")
	require.NoError(t, err)
	conn := g.dialRaw(t, token)
	ev := readEvent(t, conn, EventAuthenticated)
	assert.JSONEq(t, `{"user_id":"`+userID+`"}`, string(ev.Data))
	return conn
}

func (g *gateway) session(t *testing.T, a, b string) *entity.ChatSession {
	t.Helper()
	session, _, err := g.chat.StartOrGetSession(context.Background(), a, usecase.StartSessionInput{
		OtherUserID: b,
		Context:     &entity.ListingRef{ListingID: "L42"},
	})
	require.NoError(t, err)
	return session
}

func (g *gateway) join(t *testing.T, conn *websocket.Conn, sessionID string, members int) {
	t.Helper()
	send(t, conn, MessageTypeJoinChatRoom, RoomData{SessionID: sessionID})
	require.Eventually(t, func() bool {
		return g.manager.RoomSize(chatRoom(sessionID)) == members
	}, waitFor, 10*time.Millisecond)
}

func send(t *testing.T, conn *websocket.Conn, frameType string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": frameType, "data": data}))
}

// readEvent skips events until one of eventType arrives.
func readEvent(t *testing.T, conn *websocket.Conn, eventType string) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(waitFor))
	for {
		var ev received
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", eventType)
		require.NoError(t, json.Unmarshal(raw, &ev))
		if ev.Type == eventType {
			return ev
		}
	}
}

// readClose drains until the server closes the connection and returns the close error.
func readClose(t *testing.T, conn *websocket.Conn) error {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(waitFor))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func decode(t *testing.T, ev received, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(ev.Data, v))
}

func TestAuthenticateWithQueryToken(t *testing.T) {
	g := newGateway(t, Options{})
	g.connect(t, "alice")

	assert.True(t, g.registry.IsOnline("alice"))
	assert.Equal(t, 1, g.manager.ConnectedClients())
}

func TestAuthenticateWithFirstFrame(t *testing.T) {
	g := newGateway(t, Options{})
	token, err := g.authority.Issue("bob", "")
	require.NoError(t, err)

	conn := g.dialRaw(t, "")
	send(t, conn, MessageTypeAuthenticate, AuthenticateData{Token: token})

	ev := readEvent(t, conn, EventAuthenticated)
	var data AuthenticatedData
	decode(t, ev, &data)
	assert.Equal(t, "bob", data.UserID)
}

func TestRejectedCredentialsCloseConnection(t *testing.T) {
	g := newGateway(t, Options{})
	suspended, err := g.authority.Issue("sam", "")
	require.NoError(t, err)

	for name, token := range map[string]string{"forged": "not-a-jwt", "suspended": suspended} {
		t.Run(name, func(t *testing.T) {
			conn := g.dialRaw(t, token)

			var data ErrorData
			decode(t, readEvent(t, conn, EventError), &data)
			assert.Equal(t, errors.CodeUnauthorized, data.Code)

			err := readClose(t, conn)
			assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
			assert.Zero(t, g.registry.Count())
		})
	}
}

func TestFirstFrameMustAuthenticate(t *testing.T) {
	g := newGateway(t, Options{})
	conn := g.dialRaw(t, "")
	send(t, conn, MessageTypePing, nil)

	var data ErrorData
	decode(t, readEvent(t, conn, EventError), &data)
	assert.Equal(t, errors.CodeUnauthorized, data.Code)
	assert.Error(t, readClose(t, conn))
}

func TestAuthTimeoutLeavesNoRegistration(t *testing.T) {
	g := newGateway(t, Options{AuthTimeout: 100 * time.Millisecond})
	conn := g.dialRaw(t, "")

	var data ErrorData
	decode(t, readEvent(t, conn, EventError), &data)
	assert.Equal(t, errors.CodeAuthTimeout, data.Code)

	err := readClose(t, conn)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	assert.Zero(t, g.registry.Count())
}

func TestPresenceOnlineThenOffline(t *testing.T) {
	g := newGateway(t, Options{})
	alice := g.connect(t, "alice")

	bob := g.connect(t, "bob")
	var online PresenceChangedData
	decode(t, readEvent(t, alice, EventPresenceChanged), &online)
	assert.Equal(t, "bob", online.UserID)
	assert.Equal(t, PresenceOnline, online.Status)

	before := time.Now()
	require.NoError(t, bob.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	var offline PresenceChangedData
	decode(t, readEvent(t, alice, EventPresenceChanged), &offline)
	assert.Equal(t, "bob", offline.UserID)
	assert.Equal(t, PresenceOffline, offline.Status)
	require.NotNil(t, offline.LastActiveAt)
	assert.False(t, offline.LastActiveAt.Before(before.Add(-time.Second)))

	status := g.registry.Status(context.Background(), "bob")
	assert.False(t, status.Online)
	assert.NotNil(t, status.LastActiveAt)
}

func TestSendMessageReachesRoomAndRecipientFeed(t *testing.T) {
	g := newGateway(t, Options{})
	session := g.session(t, "alice", "bob")
	alice := g.connect(t, "alice")
	bob := g.connect(t, "bob")

	g.join(t, alice, session.ID, 1)
	g.join(t, bob, session.ID, 2)

	send(t, alice, MessageTypeSendMessage, SendMessageData{SessionID: session.ID, Content: "Is it still available?", TempID: "tmp-1"})

	var ack MessageAckData
	decode(t, readEvent(t, alice, EventMessageAck), &ack)
	assert.Equal(t, "tmp-1", ack.TempID)
	require.NotNil(t, ack.Message)
	assert.Equal(t, "alice", ack.Message.SenderID)

	var created MessageCreatedData
	decode(t, readEvent(t, bob, EventMessageCreated), &created)
	assert.Equal(t, session.ID, created.SessionID)
	assert.Equal(t, ack.Message.ID, created.Message.ID)
	assert.Equal(t, "Is it still available?", created.Message.Content)

	var notified NotificationCreatedData
	decode(t, readEvent(t, bob, EventNotificationCreated), &notified)
	assert.Equal(t, entity.NotificationNewMessage, notified.Event.Type)
	assert.Equal(t, "bob", notified.Event.RecipientID)

	items, total, err := g.notifications.List(context.Background(), "bob", true, utils.NewPaginationParams(1, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, notified.Event.ID, items[0].ID)
}

func TestRoomOrderMatchesSendOrder(t *testing.T) {
	g := newGateway(t, Options{})
	session := g.session(t, "alice", "bob")
	alice := g.connect(t, "alice")
	bob := g.connect(t, "bob")
	g.join(t, bob, session.ID, 1)

	const n = 20
	for i := 0; i < n; i++ {
		send(t, alice, MessageTypeSendMessage, SendMessageData{SessionID: session.ID, Content: string(rune('a' + i))})
	}

	for i := 0; i < n; i++ {
		var created MessageCreatedData
		decode(t, readEvent(t, bob, EventMessageCreated), &created)
		assert.Equal(t, string(rune('a'+i)), created.Message.Content)
	}
}

func TestJoinRequiresParticipant(t *testing.T) {
	g := newGateway(t, Options{})
	session := g.session(t, "alice", "bob")
	carol := g.connect(t, "carol")

	send(t, carol, MessageTypeJoinChatRoom, RoomData{SessionID: session.ID})

	var data ErrorData
	decode(t, readEvent(t, carol, EventError), &data)
	assert.Equal(t, errors.CodeForbidden, data.Code)
	assert.Equal(t, MessageTypeJoinChatRoom, data.RequestType)
	assert.Zero(t, g.manager.RoomSize(chatRoom(session.ID)))
}

func TestTypingRelayedToRoomMembersOnly(t *testing.T) {
	g := newGateway(t, Options{RateLimiter: ratelimit.NewRateLimiter(nil)})
	session := g.session(t, "alice", "bob")
	alice := g.connect(t, "alice")
	bob := g.connect(t, "bob")
	carol := g.connect(t, "carol")
	g.join(t, alice, session.ID, 1)
	g.join(t, bob, session.ID, 2)

	// carol is not in the room, so her frame is dropped without an error
	send(t, carol, MessageTypeTyping, TypingData{SessionID: session.ID, IsTyping: true})
	send(t, carol, MessageTypePing, nil)
	readEvent(t, carol, EventPong)

	send(t, alice, MessageTypeTyping, TypingData{SessionID: session.ID, IsTyping: true})

	var typing TypingChangedData
	decode(t, readEvent(t, bob, EventTypingChanged), &typing)
	assert.Equal(t, "alice", typing.UserID)
	assert.True(t, typing.IsTyping)
}

func TestLeaveChatRoomStopsDelivery(t *testing.T) {
	g := newGateway(t, Options{})
	session := g.session(t, "alice", "bob")
	bob := g.connect(t, "bob")
	g.join(t, bob, session.ID, 1)

	send(t, bob, MessageTypeLeaveChatRoom, RoomData{SessionID: session.ID})
	require.Eventually(t, func() bool {
		return g.manager.RoomSize(chatRoom(session.ID)) == 0
	}, waitFor, 10*time.Millisecond)
}

func TestSendFailureReturnsErrorEvent(t *testing.T) {
	g := newGateway(t, Options{})
	alice := g.connect(t, "alice")

	send(t, alice, MessageTypeSendMessage, SendMessageData{SessionID: "missing", Content: "hi", TempID: "tmp-9"})

	var data ErrorData
	decode(t, readEvent(t, alice, EventError), &data)
	assert.Equal(t, errors.CodeNotFound, data.Code)
	assert.Equal(t, MessageTypeSendMessage, data.RequestType)
	assert.Equal(t, "tmp-9", data.TempID)
}

func TestUnknownFrameType(t *testing.T) {
	g := newGateway(t, Options{})
	alice := g.connect(t, "alice")

	send(t, alice, "dance", nil)
	var data ErrorData
	decode(t, readEvent(t, alice, EventError), &data)
	assert.Equal(t, errors.CodeInvalidArgument, data.Code)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
	decode(t, readEvent(t, alice, EventError), &data)
	assert.Equal(t, errors.CodeInvalidArgument, data.Code)
}

func TestNewConnectionReplacesOld(t *testing.T) {
	g := newGateway(t, Options{})
	first := g.connect(t, "alice")
	oldSink, online := g.registry.Lookup("alice")
	require.True(t, online)

	g.connect(t, "alice")

	readEvent(t, first, EventSessionReplaced)
	assert.Error(t, readClose(t, first))

	current, online := g.registry.Lookup("alice")
	assert.True(t, online)
	assert.NotEqual(t, oldSink.ConnID(), current.ConnID())
	assert.Equal(t, 1, g.manager.RoomSize(userRoom("alice")))
}

func TestPublishNotificationToOfflineUser(t *testing.T) {
	g := newGateway(t, Options{})

	assert.NoError(t, g.manager.PublishNotification(&entity.Notification{ID: "n1", RecipientID: "bob"}))
}

func TestCloseDisconnectsEveryone(t *testing.T) {
	g := newGateway(t, Options{})
	alice := g.connect(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, g.manager.Close(ctx))

	err := readClose(t, alice)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Zero(t, g.registry.Count())

	late := g.dialRaw(t, "")
	assert.Error(t, readClose(t, late))
}

func TestDeliverNeverBlocks(t *testing.T) {
	c := newClient(nil, 1)

	assert.True(t, c.Deliver([]byte("one")))
	assert.False(t, c.Deliver([]byte("two")))

	c.shutdown(websocket.CloseNormalClosure)
	<-c.send
	assert.False(t, c.Deliver([]byte("three")))
}

func TestTeardownDuringActivationSuppressesOnline(t *testing.T) {
	registry := presence.NewRegistry(nil)
	m := NewManager(registry, nil, Options{})

	observer := newClient(nil, 8)
	observer.UserID = "bob"
	observer.state = stateActive
	m.clients[observer] = struct{}{}

	subject := newClient(nil, 8)
	// Hold the subject between registration and its online broadcast.
	subject.presenceMu.Lock()

	activated := make(chan bool, 1)
	go func() { activated <- m.activate(subject, "alice") }()
	require.Eventually(t, func() bool { return registry.IsOnline("alice") }, waitFor, 5*time.Millisecond)

	tornDown := make(chan struct{})
	go func() {
		m.teardown(subject, websocket.CloseGoingAway)
		close(tornDown)
	}()
	require.Eventually(t, func() bool { return !registry.IsOnline("alice") }, waitFor, 5*time.Millisecond)

	subject.presenceMu.Unlock()
	assert.True(t, <-activated)
	<-tornDown

	var statuses []string
	for len(observer.send) > 0 {
		var evt struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(<-observer.send, &evt))
		if evt.Type != EventPresenceChanged {
			continue
		}
		var data PresenceChangedData
		require.NoError(t, json.Unmarshal(evt.Data, &data))
		statuses = append(statuses, data.Status)
	}
	assert.Equal(t, []string{PresenceOffline}, statuses)
}
