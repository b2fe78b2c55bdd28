package client

import (
	"context"
	"sync"

	"github.com/pingline/pingline/internal/directory"
	"github.com/pingline/pingline/internal/identity"
	"github.com/pingline/pingline/internal/messages"
	"github.com/pingline/pingline/internal/responder"
)

// API is the server surface the conversation view depends on. *Client
// satisfies it.
type API interface {
	Thread(ctx context.Context, contactID string) ([]messages.Message, error)
	SendToUser(ctx context.Context, contactID, text string) (messages.Message, error)
	SendToBot(ctx context.Context, botID, text string) (responder.Exchange, error)
}

// Notify surfaces a user-visible transient notification.
type Notify func(err error)

// Conversation is the per-session view model: the active contact, its kind,
// and the visible message list. It is safe for concurrent use by UI events
// and push callbacks.
type Conversation struct {
	api    API
	selfID string
	notify Notify

	mu       sync.Mutex
	selected directory.Contact
	hasSel   bool
	msgs     []messages.Message
	loading  bool
	epoch    uint64
	closed   bool

	fetches sync.WaitGroup
}

// NewConversation creates an empty view for the given authenticated user.
func NewConversation(api API, selfID string, notify Notify) *Conversation {
	if notify == nil {
		notify = func(error) {}
	}
	return &Conversation{
		api:    api,
		selfID: selfID,
		notify: notify,
	}
}

// SelectContact switches the active contact. The message list clears
// immediately; the thread is then fetched in the background and replaces the
// list when it resolves. A fetch that resolves after another switch is
// discarded, the most recent selection always wins.
func (v *Conversation) SelectContact(ctx context.Context, contact directory.Contact) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.epoch++
	fetchEpoch := v.epoch
	v.selected = contact
	v.hasSel = true
	v.msgs = nil
	v.loading = true
	v.mu.Unlock()

	v.fetches.Add(1)
	go func() {
		defer v.fetches.Done()
		thread, err := v.api.Thread(ctx, contact.ID)

		v.mu.Lock()
		defer v.mu.Unlock()
		if v.closed || v.epoch != fetchEpoch {
			// A newer selection owns the view now.
			return
		}
		v.loading = false
		if err != nil {
			v.notify(err)
			return
		}
		v.msgs = thread
	}()
}

// Send delivers text to the active contact. Bot contacts yield a message
// pair, human contacts a single message; either is appended on success. On
// failure nothing is appended and the error is surfaced as a notification.
func (v *Conversation) Send(ctx context.Context, text string) error {
	v.mu.Lock()
	if v.closed || !v.hasSel {
		v.mu.Unlock()
		return nil
	}
	contact := v.selected
	sendEpoch := v.epoch
	v.mu.Unlock()

	var appended []messages.Message
	var err error
	switch contact.Kind {
	case identity.KindBot:
		var exchange responder.Exchange
		exchange, err = v.api.SendToBot(ctx, contact.ID, text)
		if err == nil {
			appended = []messages.Message{exchange.UserMessage, exchange.BotMessage}
		}
	case identity.KindUser:
		var msg messages.Message
		msg, err = v.api.SendToUser(ctx, contact.ID, text)
		if err == nil {
			appended = []messages.Message{msg}
		}
	}
	if err != nil {
		v.notify(err)
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.epoch != sendEpoch {
		return nil
	}
	v.msgs = append(v.msgs, appended...)
	return nil
}

// HandlePush merges one pushed message into the view. The message is
// appended only when it belongs to the active thread: one of its endpoints
// is the selected contact. No deduplication is attempted.
func (v *Conversation) HandlePush(msg messages.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || !v.hasSel {
		return
	}
	if msg.SenderID != v.selected.ID && msg.ReceiverID != v.selected.ID {
		return
	}
	v.msgs = append(v.msgs, msg)
}

// ContactDeleted reconciles the view after a contact is removed. Deleting
// the active contact resets the selection to none and the kind to the human
// default; deleting any other contact leaves the view untouched.
func (v *Conversation) ContactDeleted(contactID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.hasSel || v.selected.ID != contactID {
		return
	}
	v.epoch++
	v.selected = directory.Contact{Kind: identity.KindUser}
	v.hasSel = false
	v.msgs = nil
	v.loading = false
}

// Close tears the view down. Pushed messages and in-flight fetches arriving
// after Close are dropped.
func (v *Conversation) Close() {
	v.mu.Lock()
	v.closed = true
	v.epoch++
	v.msgs = nil
	v.hasSel = false
	v.mu.Unlock()
}

// Selected returns the active contact and whether one is selected.
func (v *Conversation) Selected() (directory.Contact, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected, v.hasSel
}

// Messages returns a copy of the visible message list.
func (v *Conversation) Messages() []messages.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]messages.Message, len(v.msgs))
	copy(out, v.msgs)
	return out
}

// Loading reports whether a thread fetch is outstanding for the selection.
func (v *Conversation) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// wait blocks until background fetches settle.
func (v *Conversation) wait() {
	v.fetches.Wait()
}
