// Package fanout routes newly persisted messages to the live sessions that
// must see them.
package fanout

import (
	"log/slog"

	"github.com/pingline/pingline/internal/event"
	"github.com/pingline/pingline/internal/identity"
	"github.com/pingline/pingline/internal/messages"
	"github.com/pingline/pingline/internal/presence"
)

// SessionSource yields the live sessions of one user.
type SessionSource interface {
	SessionsFor(userID string) []presence.Session
}

// Notifier pushes newMessage events to interested sessions.
type Notifier struct {
	sessions SessionSource
	logger   *slog.Logger
}

// NewNotifier creates a fan-out notifier over the presence registry.
func NewNotifier(log *slog.Logger, sessions SessionSource) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		sessions: sessions,
		logger:   log.With(slog.String("component", "fanout")),
	}
}

// Notify delivers one message to every live session of its sender and
// receiver, except the session that originated the send (that client already
// holds the message from the synchronous response). Bot endpoints hold no
// sessions and contribute no targets. Unreachable sessions are dropped
// silently; delivery is best-effort.
func (n *Notifier) Notify(msg messages.Message, originSessionID string) {
	n.NotifyAll(originSessionID, msg)
}

// NotifyAll delivers several messages produced by one send operation. The
// messages reach each target session in the given order: pushes are issued
// sequentially and every session buffer is FIFO.
func (n *Notifier) NotifyAll(originSessionID string, msgs ...messages.Message) {
	for _, msg := range msgs {
		ev, err := event.New(event.TypeNewMessage, msg)
		if err != nil {
			n.logger.Warn("encode message event failed", slog.Any("error", err))
			continue
		}
		for _, sess := range n.targets(msg, originSessionID) {
			if !sess.Send(ev) {
				n.logger.Debug("message push dropped",
					slog.String("session_id", sess.ID()),
					slog.String("message_id", msg.ID),
				)
			}
		}
	}
}

// targets resolves the receiving session set for one message under the
// routing rule: every session whose user is the sender or the receiver,
// minus the originating session.
func (n *Notifier) targets(msg messages.Message, originSessionID string) []presence.Session {
	seen := map[string]struct{}{}
	out := make([]presence.Session, 0, 4)

	collect := func(ref identity.Ref) {
		switch ref.Kind {
		case identity.KindUser:
			for _, sess := range n.sessions.SessionsFor(ref.ID) {
				if sess.ID() == originSessionID {
					continue
				}
				if _, dup := seen[sess.ID()]; dup {
					continue
				}
				seen[sess.ID()] = struct{}{}
				out = append(out, sess)
			}
		case identity.KindBot:
			// Bots never hold live sessions.
		}
	}

	collect(identity.Ref{ID: msg.SenderID, Kind: msg.SenderKind})
	collect(identity.Ref{ID: msg.ReceiverID, Kind: msg.ReceiverKind})
	return out
}
