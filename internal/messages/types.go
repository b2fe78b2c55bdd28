package messages

import (
	"context"
	"time"

	"github.com/pingline/pingline/internal/identity"
)

// Message is one persisted chat message between two identities.
type Message struct {
	ID            string        `json:"id"`
	Seq           int64         `json:"-"`
	SenderID      string        `json:"sender_id"`
	SenderKind    identity.Kind `json:"sender_kind"`
	ReceiverID    string        `json:"receiver_id"`
	ReceiverKind  identity.Kind `json:"receiver_kind"`
	Text          string        `json:"text"`
	AttachmentURL string        `json:"attachment_url,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// InThread reports whether the message belongs to the conversation between a and b.
func (m Message) InThread(aID, bID string) bool {
	return (m.SenderID == aID && m.ReceiverID == bID) ||
		(m.SenderID == bID && m.ReceiverID == aID)
}

// AppendInput is the input for persisting a message.
type AppendInput struct {
	Sender        identity.Ref
	Receiver      identity.Ref
	Text          string
	AttachmentURL string
}

// Store defines message persistence behavior.
type Store interface {
	Append(ctx context.Context, input AppendInput) (Message, error)
	Thread(ctx context.Context, aID, bID string) ([]Message, error)
}
