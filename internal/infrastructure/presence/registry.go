package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"classifieds/pkg/logger"
)

// Sink is a live connection able to take an encoded event without blocking.
type Sink interface {
	ConnID() string
	Deliver(payload []byte) bool
}

// Status is a user's presence as seen by this process.
type Status struct {
	UserID       string     `json:"user_id"`
	Online       bool       `json:"online"`
	ConnectedAt  *time.Time `json:"connected_at,omitempty"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
}

// Mirror publishes presence transitions beyond this process. Writes are best effort.
type Mirror interface {
	MarkOnline(ctx context.Context, userID string, at time.Time) error
	MarkOffline(ctx context.Context, userID string, at time.Time) error
	LastActive(ctx context.Context, userID string) (time.Time, bool, error)
	Close() error
}

type entry struct {
	sink        Sink
	connectedAt time.Time
}

type mirrorUpdate struct {
	userID string
	online bool
	at     time.Time
}

// Registry maps each user to at most one live connection. It is the only
// record of who is online and does not survive a restart.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]entry
	lastActive map[string]time.Time
	closed     bool

	mirror  Mirror
	updates chan mirrorUpdate
	done    chan struct{}
}

// NewRegistry builds a registry. mirror may be nil.
func NewRegistry(mirror Mirror) *Registry {
	r := &Registry{
		entries:    make(map[string]entry),
		lastActive: make(map[string]time.Time),
		mirror:     mirror,
		done:       make(chan struct{}),
	}
	if mirror != nil {
		r.updates = make(chan mirrorUpdate, 1024)
		go r.runMirror()
	} else {
		close(r.done)
	}
	return r
}

// runMirror forwards transitions in order so the mirror never sees online after offline.
func (r *Registry) runMirror() {
	defer close(r.done)
	for u := range r.updates {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		var err error
		if u.online {
			err = r.mirror.MarkOnline(ctx, u.userID, u.at)
		} else {
			err = r.mirror.MarkOffline(ctx, u.userID, u.at)
		}
		cancel()
		if err != nil {
			logger.Warn("Presence: mirror update for %s failed: %v", u.userID, err)
		}
	}
}

func (r *Registry) enqueue(u mirrorUpdate) {
	if r.updates == nil {
		return
	}
	select {
	case r.updates <- u:
	default:
		logger.Warn("Presence: mirror queue full, dropping update for %s", u.userID)
	}
}

// Register maps userID to sink and returns the sink it replaced, if any.
// It returns false once the registry is closed.
func (r *Registry) Register(userID string, sink Sink, at time.Time) (Sink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false
	}

	var replaced Sink
	if prev, ok := r.entries[userID]; ok && prev.sink != sink {
		replaced = prev.sink
	}
	r.entries[userID] = entry{sink: sink, connectedAt: at}
	r.lastActive[userID] = at
	r.enqueue(mirrorUpdate{userID: userID, online: true, at: at})
	return replaced, true
}

// Unregister removes userID only while it still maps to sink, so a superseded
// connection cannot take its replacement offline. It reports whether the user went offline.
func (r *Registry) Unregister(userID string, sink Sink, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entries[userID]
	if !ok || current.sink != sink {
		return false
	}
	delete(r.entries, userID)
	r.lastActive[userID] = at
	r.enqueue(mirrorUpdate{userID: userID, online: false, at: at})
	return true
}

func (r *Registry) Lookup(userID string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return e.sink, true
}

func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	users := make([]string, 0, len(r.entries))
	for userID := range r.entries {
		users = append(users, userID)
	}
	r.mu.RUnlock()

	sort.Strings(users)
	return users
}

// Status reports presence for userID. When the user is offline here the
// mirror is asked too and the newer last-seen wins.
func (r *Registry) Status(ctx context.Context, userID string) Status {
	r.mu.RLock()
	e, online := r.entries[userID]
	last, seen := r.lastActive[userID]
	r.mu.RUnlock()

	status := Status{UserID: userID, Online: online}
	if online {
		connectedAt := e.connectedAt
		status.ConnectedAt = &connectedAt
	}
	if seen {
		status.LastActiveAt = &last
	}
	if online || r.mirror == nil {
		return status
	}

	// Another process may have seen the user more recently.
	at, ok, err := r.mirror.LastActive(ctx, userID)
	if err != nil {
		logger.Warn("Presence: mirror lookup for %s failed: %v", userID, err)
	} else if ok && (!seen || at.After(last)) {
		status.LastActiveAt = &at
	}
	return status
}

// Close empties the registry and returns the sinks that were registered.
// Later Register calls are refused.
func (r *Registry) Close() []Sink {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sinks := make([]Sink, 0, len(r.entries))
	for _, e := range r.entries {
		sinks = append(sinks, e.sink)
	}
	r.entries = make(map[string]entry)
	if r.updates != nil {
		close(r.updates)
	}
	r.mu.Unlock()

	<-r.done
	if r.mirror != nil {
		if err := r.mirror.Close(); err != nil {
			logger.Warn("Presence: closing mirror: %v", err)
		}
	}
	return sinks
}
