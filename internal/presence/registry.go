// Package presence tracks which human identities hold live socket sessions.
//
// The registry is the only process-wide mutable state in the server. All
// mutation funnels through one mutex so concurrent connects and disconnects
// never lose updates to the online set. Nothing is persisted: the registry
// starts empty and is rebuilt as clients reconnect.
package presence

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/pingline/pingline/internal/event"
)

// Session is one live connection owned by an authenticated user.
// Send must not block; it reports false when the session cannot accept the event.
type Session interface {
	ID() string
	UserID() string
	Send(ev event.Event) bool
}

// Registry maps user identities to their live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session            // session ID -> session
	byUser   map[string]map[string]Session // user ID -> session ID -> session
	logger   *slog.Logger
}

// NewRegistry creates an empty presence registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		sessions: map[string]Session{},
		byUser:   map[string]map[string]Session{},
		logger:   log.With(slog.String("component", "presence")),
	}
}

// Connect registers a session. When the user comes online (first session),
// the updated online set is broadcast to every connected client.
func (r *Registry) Connect(sess Session) {
	userID := sess.UserID()

	r.mu.Lock()
	r.sessions[sess.ID()] = sess
	userSessions, ok := r.byUser[userID]
	if !ok {
		userSessions = map[string]Session{}
		r.byUser[userID] = userSessions
	}
	wasOffline := len(userSessions) == 0
	userSessions[sess.ID()] = sess
	r.mu.Unlock()

	r.logger.Debug("session connected",
		slog.String("session_id", sess.ID()),
		slog.String("user_id", userID),
	)
	if wasOffline {
		r.broadcastOnline()
	}
}

// Disconnect removes a session by ID. When the owning user's last session is
// gone, the updated online set is broadcast.
func (r *Registry) Disconnect(sessionID string) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, sessionID)
	userID := sess.UserID()
	wentOffline := false
	if userSessions := r.byUser[userID]; userSessions != nil {
		delete(userSessions, sessionID)
		if len(userSessions) == 0 {
			delete(r.byUser, userID)
			wentOffline = true
		}
	}
	r.mu.Unlock()

	r.logger.Debug("session disconnected",
		slog.String("session_id", sessionID),
		slog.String("user_id", userID),
	)
	if wentOffline {
		r.broadcastOnline()
	}
}

// IsOnline reports whether the user holds at least one live session.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// OnlineUserIDs returns the sorted set of online user IDs.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		ids = append(ids, userID)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// SessionsFor returns the live sessions of one user.
func (r *Registry) SessionsFor(userID string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userSessions := r.byUser[userID]
	out := make([]Session, 0, len(userSessions))
	for _, sess := range userSessions {
		out = append(out, sess)
	}
	return out
}

// Broadcast pushes an event to every live session. Sessions that cannot
// accept the event are skipped; delivery is best-effort.
func (r *Registry) Broadcast(ev event.Event) {
	r.mu.RLock()
	targets := make([]Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		targets = append(targets, sess)
	}
	r.mu.RUnlock()

	for _, sess := range targets {
		if !sess.Send(ev) {
			r.logger.Debug("broadcast dropped", slog.String("session_id", sess.ID()))
		}
	}
}

func (r *Registry) broadcastOnline() {
	ev, err := event.New(event.TypeOnlineUsers, event.OnlineUsersPayload{UserIDs: r.OnlineUserIDs()})
	if err != nil {
		r.logger.Warn("encode online users event failed", slog.Any("error", err))
		return
	}
	r.Broadcast(ev)
}
