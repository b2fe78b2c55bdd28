package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pingline/pingline/internal/directory"
	"github.com/pingline/pingline/internal/identity"
	"github.com/pingline/pingline/internal/messages"
	"github.com/pingline/pingline/internal/responder"
)

type fakeAPI struct {
	mu      sync.Mutex
	threads map[string][]messages.Message
	gate    map[string]chan struct{} // optional per-contact fetch gate

	sendErr error
	sent    []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		threads: map[string][]messages.Message{},
		gate:    map[string]chan struct{}{},
	}
}

func (f *fakeAPI) Thread(_ context.Context, contactID string) ([]messages.Message, error) {
	f.mu.Lock()
	gate := f.gate[contactID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threads[contactID], nil
}

func (f *fakeAPI) SendToUser(_ context.Context, contactID, text string) (messages.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return messages.Message{}, f.sendErr
	}
	f.sent = append(f.sent, text)
	return messages.Message{
		ID: text, SenderID: "self", SenderKind: identity.KindUser,
		ReceiverID: contactID, ReceiverKind: identity.KindUser, Text: text,
	}, nil
}

func (f *fakeAPI) SendToBot(_ context.Context, botID, text string) (responder.Exchange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return responder.Exchange{}, f.sendErr
	}
	f.sent = append(f.sent, text)
	return responder.Exchange{
		UserMessage: messages.Message{
			ID: text + "-in", SenderID: "self", SenderKind: identity.KindUser,
			ReceiverID: botID, ReceiverKind: identity.KindBot, Text: text,
		},
		BotMessage: messages.Message{
			ID: text + "-out", SenderID: botID, SenderKind: identity.KindBot,
			ReceiverID: "self", ReceiverKind: identity.KindUser, Text: "re: " + text,
		},
	}, nil
}

func humanContact(id string) directory.Contact {
	return directory.Contact{ID: id, Kind: identity.KindUser, DisplayName: id}
}

func botContact(id string) directory.Contact {
	return directory.Contact{ID: id, Kind: identity.KindBot, DisplayName: id}
}

func TestSelectContactReplacesThread(t *testing.T) {
	api := newFakeAPI()
	api.threads["bob"] = []messages.Message{{ID: "m1", SenderID: "bob", ReceiverID: "self", Text: "yo"}}
	v := NewConversation(api, "self", nil)

	v.SelectContact(context.Background(), humanContact("bob"))
	v.wait()

	got := v.Messages()
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("expected bob's thread, got %+v", got)
	}
	if v.Loading() {
		t.Fatal("loading flag should clear after fetch")
	}
}

func TestSwitchClearsSynchronously(t *testing.T) {
	api := newFakeAPI()
	api.threads["bot-1"] = []messages.Message{{ID: "m1", SenderID: "bot-1", ReceiverID: "self"}}
	gate := make(chan struct{})
	api.gate["bot-1"] = gate
	v := NewConversation(api, "self", nil)

	v.SelectContact(context.Background(), botContact("bot-1"))

	// The fetch is still blocked; a second switch must see cleared state.
	v.SelectContact(context.Background(), humanContact("u1"))
	if got := v.Messages(); len(got) != 0 {
		t.Fatalf("messages should clear before any fetch resolves, got %+v", got)
	}

	// Let the stale bot fetch resolve; it must be discarded.
	close(gate)
	v.wait()

	sel, ok := v.Selected()
	if !ok || sel.ID != "u1" {
		t.Fatalf("expected u1 selected, got %+v ok=%v", sel, ok)
	}
	for _, msg := range v.Messages() {
		if msg.ID == "m1" {
			t.Fatal("stale thread fetch must not overwrite newer selection")
		}
	}
}

func TestSendToHumanAppendsSingle(t *testing.T) {
	api := newFakeAPI()
	v := NewConversation(api, "self", nil)
	v.SelectContact(context.Background(), humanContact("bob"))
	v.wait()

	if err := v.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	got := v.Messages()
	if len(got) != 1 || got[0].Text != "hi" {
		t.Fatalf("expected single appended message, got %+v", got)
	}
}

func TestSendToBotAppendsPair(t *testing.T) {
	api := newFakeAPI()
	v := NewConversation(api, "self", nil)
	v.SelectContact(context.Background(), botContact("bot-1"))
	v.wait()

	if err := v.Send(context.Background(), "q"); err != nil {
		t.Fatalf("send: %v", err)
	}
	got := v.Messages()
	if len(got) != 2 || got[0].ID != "q-in" || got[1].ID != "q-out" {
		t.Fatalf("expected exchange pair in order, got %+v", got)
	}
}

func TestSendFailureNotifiesWithoutAppend(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = errors.New("boom")
	var notified error
	v := NewConversation(api, "self", func(err error) { notified = err })
	v.SelectContact(context.Background(), humanContact("bob"))
	v.wait()

	if err := v.Send(context.Background(), "hi"); err == nil {
		t.Fatal("expected send error")
	}
	if notified == nil {
		t.Fatal("expected notification on failure")
	}
	if got := v.Messages(); len(got) != 0 {
		t.Fatalf("nothing should be appended on failure, got %+v", got)
	}
}

func TestHandlePushFiltersByThread(t *testing.T) {
	v := NewConversation(newFakeAPI(), "self", nil)
	v.SelectContact(context.Background(), humanContact("bob"))
	v.wait()

	v.HandlePush(messages.Message{ID: "m1", SenderID: "bob", ReceiverID: "self"})
	v.HandlePush(messages.Message{ID: "m2", SenderID: "carol", ReceiverID: "self"})

	got := v.Messages()
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("expected only bob's message, got %+v", got)
	}
}

func TestHandlePushBotEitherEndpoint(t *testing.T) {
	v := NewConversation(newFakeAPI(), "self", nil)
	v.SelectContact(context.Background(), botContact("bot-1"))
	v.wait()

	v.HandlePush(messages.Message{ID: "m1", SenderID: "self", ReceiverID: "bot-1"})
	v.HandlePush(messages.Message{ID: "m2", SenderID: "bot-1", ReceiverID: "self"})

	if got := v.Messages(); len(got) != 2 {
		t.Fatalf("both directions belong to the bot thread, got %+v", got)
	}
}

func TestHandlePushNoDedup(t *testing.T) {
	v := NewConversation(newFakeAPI(), "self", nil)
	v.SelectContact(context.Background(), humanContact("bob"))
	v.wait()

	msg := messages.Message{ID: "m1", SenderID: "bob", ReceiverID: "self"}
	v.HandlePush(msg)
	v.HandlePush(msg)

	if got := v.Messages(); len(got) != 2 {
		t.Fatalf("pushes are never deduplicated, got %+v", got)
	}
}

func TestContactDeletedResetsSelection(t *testing.T) {
	v := NewConversation(newFakeAPI(), "self", nil)
	v.SelectContact(context.Background(), botContact("bot-1"))
	v.wait()
	v.HandlePush(messages.Message{ID: "m1", SenderID: "bot-1", ReceiverID: "self"})

	v.ContactDeleted("bot-1")

	if _, ok := v.Selected(); ok {
		t.Fatal("selection should reset when the active contact is deleted")
	}
	if sel, _ := v.Selected(); sel.Kind != identity.KindUser {
		t.Fatalf("kind should reset to the human default, got %q", sel.Kind)
	}
	if got := v.Messages(); len(got) != 0 {
		t.Fatalf("messages should clear, got %+v", got)
	}
}

func TestContactDeletedOtherContactUntouched(t *testing.T) {
	v := NewConversation(newFakeAPI(), "self", nil)
	v.SelectContact(context.Background(), humanContact("bob"))
	v.wait()
	v.HandlePush(messages.Message{ID: "m1", SenderID: "bob", ReceiverID: "self"})

	v.ContactDeleted("bot-9")

	if sel, ok := v.Selected(); !ok || sel.ID != "bob" {
		t.Fatalf("selection should be untouched, got %+v ok=%v", sel, ok)
	}
	if got := v.Messages(); len(got) != 1 {
		t.Fatalf("messages should be untouched, got %+v", got)
	}
}

func TestClosedViewDropsPushes(t *testing.T) {
	v := NewConversation(newFakeAPI(), "self", nil)
	v.SelectContact(context.Background(), humanContact("bob"))
	v.wait()

	v.Close()
	v.HandlePush(messages.Message{ID: "m1", SenderID: "bob", ReceiverID: "self"})

	if got := v.Messages(); len(got) != 0 {
		t.Fatalf("closed view must drop pushes, got %+v", got)
	}
}
