package entity

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// chatNamespace seeds name-based session ids so one (pair, listing) always maps to one document.
var chatNamespace = uuid.MustParse("6f1c3a52-3c1e-4f57-9a0e-2b7d1c5e8a41")

// ListingRef is the listing a chat was started from. The chat core treats it as inert metadata.
type ListingRef struct {
	ListingID string  `json:"listing_id" firestore:"listingId"`
	Title     string  `json:"title,omitempty" firestore:"title,omitempty"`
	Price     float64 `json:"price,omitempty" firestore:"price,omitempty"`
	ImageURL  string  `json:"image_url,omitempty" firestore:"imageUrl,omitempty"`
}

// LastMessage caches the most recent message of a session.
type LastMessage struct {
	Content  string      `json:"content" firestore:"content"`
	Kind     MessageKind `json:"kind" firestore:"kind"`
	SenderID string      `json:"sender_id" firestore:"senderId"`
	SentAt   time.Time   `json:"sent_at" firestore:"sentAt"`
}

type UnreadSlot struct {
	UserID string `firestore:"userId"`
	Count  int    `firestore:"count"`
}

// UnreadCounts holds one counter per participant. Sessions always have exactly two.
type UnreadCounts struct {
	A UnreadSlot `firestore:"a"`
	B UnreadSlot `firestore:"b"`
}

func NewUnreadCounts(userA, userB string) UnreadCounts {
	return UnreadCounts{A: UnreadSlot{UserID: userA}, B: UnreadSlot{UserID: userB}}
}

func (u *UnreadCounts) slot(userID string) *UnreadSlot {
	switch userID {
	case u.A.UserID:
		return &u.A
	case u.B.UserID:
		return &u.B
	}
	return nil
}

func (u UnreadCounts) CountFor(userID string) int {
	if s := u.slot(userID); s != nil {
		return s.Count
	}
	return 0
}

func (u *UnreadCounts) Increment(userID string) {
	if s := u.slot(userID); s != nil {
		s.Count++
	}
}

func (u *UnreadCounts) Reset(userID string) {
	if s := u.slot(userID); s != nil {
		s.Count = 0
	}
}

func (u UnreadCounts) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int{
		u.A.UserID: u.A.Count,
		u.B.UserID: u.B.Count,
	})
}

type ChatSession struct {
	ID             string       `json:"id" firestore:"id"`
	Participants   []string     `json:"participants" firestore:"participants"`
	ParticipantKey string       `json:"-" firestore:"participantKey"`
	Context        *ListingRef  `json:"context,omitempty" firestore:"context,omitempty"`
	ContextKey     string       `json:"-" firestore:"contextKey"`
	Messages       []Message    `json:"messages,omitempty" firestore:"messages"`
	LastMessage    *LastMessage `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	UnreadCounts   UnreadCounts `json:"unread_counts" firestore:"unreadCounts"`
	IsActive       bool         `json:"is_active" firestore:"isActive"`
	CreatedAt      time.Time    `json:"created_at" firestore:"createdAt"`
	UpdatedAt      time.Time    `json:"updated_at" firestore:"updatedAt"`
}

// NewChatSession builds an empty session for the pair. Callers must reject userA == userB first.
func NewChatSession(userA, userB string, context *ListingRef, now time.Time) *ChatSession {
	participants := SortedPair(userA, userB)
	return &ChatSession{
		ID:             SessionID(userA, userB, context),
		Participants:   participants,
		ParticipantKey: PairKey(userA, userB),
		Context:        context,
		ContextKey:     ContextKey(context),
		Messages:       []Message{},
		UnreadCounts:   NewUnreadCounts(participants[0], participants[1]),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func SortedPair(userA, userB string) []string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return pair
}

// PairKey length-prefixes each sorted id so ids containing separators cannot collide.
func PairKey(userA, userB string) string {
	pair := SortedPair(userA, userB)
	return lengthPrefixed(pair[0]) + lengthPrefixed(pair[1])
}

// ContextKey is empty for sessions without a listing. Listing ids are never
// empty, so no listing shares the key of a context-free session.
func ContextKey(context *ListingRef) string {
	if context == nil || context.ListingID == "" {
		return ""
	}
	return lengthPrefixed(context.ListingID)
}

func lengthPrefixed(s string) string {
	return strconv.Itoa(len(s)) + ":" + s
}

// SessionID is deterministic in (participant set, listing).
func SessionID(userA, userB string, context *ListingRef) string {
	return uuid.NewSHA1(chatNamespace, []byte(PairKey(userA, userB)+"#"+ContextKey(context))).String()
}

// SameConversation reports whether other is the session for s's participant
// pair and listing.
func (s *ChatSession) SameConversation(other *ChatSession) bool {
	return s.ParticipantKey == other.ParticipantKey && s.ContextKey == other.ContextKey
}

func (s *ChatSession) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant who is not userID.
func (s *ChatSession) OtherParticipant(userID string) string {
	for _, p := range s.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// Append adds msg, refreshes the summary, and bumps the recipient's counter.
func (s *ChatSession) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.LastMessage = &LastMessage{
		Content:  msg.Content,
		Kind:     msg.Kind,
		SenderID: msg.SenderID,
		SentAt:   msg.CreatedAt,
	}
	s.UnreadCounts.Increment(s.OtherParticipant(msg.SenderID))
	s.UpdatedAt = msg.CreatedAt
}

// MarkReadBy flags every unread message from the other participant as read and
// clears readerID's counter. It returns how many messages changed.
func (s *ChatSession) MarkReadBy(readerID string, now time.Time) int {
	changed := 0
	for i := range s.Messages {
		m := &s.Messages[i]
		if m.SenderID == readerID || m.IsRead {
			continue
		}
		m.IsRead = true
		readAt := now
		m.ReadAt = &readAt
		changed++
	}
	s.UnreadCounts.Reset(readerID)
	if changed > 0 {
		s.UpdatedAt = now
	}
	return changed
}

// Summary is the session without its message log, for list views.
func (s *ChatSession) Summary() *ChatSession {
	c := *s
	c.Messages = nil
	return &c
}
