package responder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pingline/pingline/internal/chatbots"
	"github.com/pingline/pingline/internal/completion"
	"github.com/pingline/pingline/internal/identity"
	"github.com/pingline/pingline/internal/messages"
)

type fakeBots struct {
	bot chatbots.Bot
	err error
}

func (f *fakeBots) GetOwned(_ context.Context, ownerID, botID string) (chatbots.Bot, error) {
	if f.err != nil {
		return chatbots.Bot{}, f.err
	}
	if botID != f.bot.ID || ownerID != f.bot.OwnerID {
		return chatbots.Bot{}, chatbots.ErrBotNotFound
	}
	return f.bot, nil
}

type fakeStore struct {
	mu       sync.Mutex
	appended []messages.Message
	failOn   int // fail the nth Append (1-based), 0 never
}

func (f *fakeStore) Append(_ context.Context, input messages.AppendInput) (messages.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn > 0 && len(f.appended)+1 == f.failOn {
		return messages.Message{}, errors.New("append failed")
	}
	msg := messages.Message{
		ID:            string(rune('a' + len(f.appended))),
		SenderID:      input.Sender.ID,
		SenderKind:    input.Sender.Kind,
		ReceiverID:    input.Receiver.ID,
		ReceiverKind:  input.Receiver.Kind,
		Text:          input.Text,
		AttachmentURL: input.AttachmentURL,
		CreatedAt:     time.Now(),
	}
	f.appended = append(f.appended, msg)
	return msg, nil
}

func (f *fakeStore) Thread(context.Context, string, string) ([]messages.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]messages.Message, len(f.appended))
	copy(out, f.appended)
	return out, nil
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(context.Context, string, string) (string, error) {
	return f.reply, f.err
}

type fakePusher struct {
	mu     sync.Mutex
	origin string
	pushed []messages.Message
	seen   chan struct{}
}

func newFakePusher() *fakePusher {
	return &fakePusher{seen: make(chan struct{}, 8)}
}

func (f *fakePusher) NotifyAll(originSessionID string, msgs ...messages.Message) {
	f.mu.Lock()
	f.origin = originSessionID
	f.pushed = append(f.pushed, msgs...)
	f.mu.Unlock()
	f.seen <- struct{}{}
}

func (f *fakePusher) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
	}
}

func testBot() chatbots.Bot {
	return chatbots.Bot{ID: "bot-1", OwnerID: "alice", DisplayName: "Helper", ModelID: "gpt-4o-mini"}
}

func TestSendPersistsBothMessages(t *testing.T) {
	store := &fakeStore{}
	pusher := newFakePusher()
	r := NewResponder(nil, &fakeBots{bot: testBot()}, store, &fakeCompleter{reply: "sure"}, pusher)

	ex, err := r.Send(context.Background(), SendInput{
		UserID: "alice", BotID: "bot-1", Text: "help me", OriginSessionID: "s1",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ex.UserMessage.Text != "help me" || ex.UserMessage.SenderKind != identity.KindUser {
		t.Fatalf("unexpected user message: %+v", ex.UserMessage)
	}
	if ex.BotMessage.Text != "sure" || ex.BotMessage.SenderKind != identity.KindBot {
		t.Fatalf("unexpected bot message: %+v", ex.BotMessage)
	}
	if len(store.appended) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(store.appended))
	}

	pusher.wait(t)
	pusher.mu.Lock()
	defer pusher.mu.Unlock()
	if pusher.origin != "s1" {
		t.Fatalf("unexpected origin: %q", pusher.origin)
	}
	if len(pusher.pushed) != 2 || pusher.pushed[0].ID != ex.UserMessage.ID || pusher.pushed[1].ID != ex.BotMessage.ID {
		t.Fatalf("expected pair push in order, got %+v", pusher.pushed)
	}
}

func TestSendCompletionFailureKeepsInbound(t *testing.T) {
	store := &fakeStore{}
	pusher := newFakePusher()
	failure := &fakeCompleter{err: completion.ErrCompletionFailed}
	r := NewResponder(nil, &fakeBots{bot: testBot()}, store, failure, pusher)

	ex, err := r.Send(context.Background(), SendInput{
		UserID: "alice", BotID: "bot-1", Text: "help me",
	})
	if !errors.Is(err, completion.ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}
	if ex.UserMessage.Text != "help me" {
		t.Fatalf("expected persisted inbound returned with the error, got %+v", ex)
	}
	if len(store.appended) != 1 {
		t.Fatalf("expected only inbound persisted, got %d", len(store.appended))
	}
	if store.appended[0].SenderID != "alice" {
		t.Fatalf("unexpected persisted message: %+v", store.appended[0])
	}

	pusher.wait(t)
	pusher.mu.Lock()
	defer pusher.mu.Unlock()
	if len(pusher.pushed) != 1 || pusher.pushed[0].SenderID != "alice" {
		t.Fatalf("expected only the inbound pushed, got %+v", pusher.pushed)
	}
}

func TestSendUnknownBot(t *testing.T) {
	store := &fakeStore{}
	r := NewResponder(nil, &fakeBots{bot: testBot()}, store, &fakeCompleter{reply: "x"}, newFakePusher())

	_, err := r.Send(context.Background(), SendInput{
		UserID: "alice", BotID: "missing", Text: "hi",
	})
	if !errors.Is(err, chatbots.ErrBotNotFound) {
		t.Fatalf("expected ErrBotNotFound, got %v", err)
	}
	if len(store.appended) != 0 {
		t.Fatalf("nothing should be persisted, got %d", len(store.appended))
	}
}

func TestSendForeignBot(t *testing.T) {
	bots := &fakeBots{err: chatbots.ErrNotOwner}
	r := NewResponder(nil, bots, &fakeStore{}, &fakeCompleter{reply: "x"}, newFakePusher())

	_, err := r.Send(context.Background(), SendInput{UserID: "mallory", BotID: "bot-1", Text: "hi"})
	if !errors.Is(err, chatbots.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}
