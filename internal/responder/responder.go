// Package responder runs the chatbot request/response pipeline: persist the
// user's message, obtain a model reply, persist the reply, and hand both
// messages to fan-out.
package responder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pingline/pingline/internal/chatbots"
	"github.com/pingline/pingline/internal/identity"
	"github.com/pingline/pingline/internal/messages"
)

// BotReader resolves bots owned by a user.
type BotReader interface {
	GetOwned(ctx context.Context, ownerID, botID string) (chatbots.Bot, error)
}

// Completer produces a model reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Pusher delivers persisted messages to live sessions.
type Pusher interface {
	NotifyAll(originSessionID string, msgs ...messages.Message)
}

// Exchange is the outcome of one bot send: the user's persisted message and
// the bot's persisted reply.
type Exchange struct {
	UserMessage messages.Message `json:"userMessage"`
	BotMessage  messages.Message `json:"aiMessage"`
}

// SendInput describes one user-to-bot send.
type SendInput struct {
	UserID          string
	BotID           string
	Text            string
	AttachmentURL   string
	OriginSessionID string
}

// Responder orchestrates the bot exchange.
type Responder struct {
	bots      BotReader
	store     messages.Store
	completer Completer
	pusher    Pusher
	logger    *slog.Logger
}

// NewResponder wires the pipeline.
func NewResponder(log *slog.Logger, bots BotReader, store messages.Store, completer Completer, pusher Pusher) *Responder {
	if log == nil {
		log = slog.Default()
	}
	return &Responder{
		bots:      bots,
		store:     store,
		completer: completer,
		pusher:    pusher,
		logger:    log.With(slog.String("service", "responder")),
	}
}

// Send runs one exchange with the bot. The inbound message is persisted
// before the model is called, so a completion failure leaves it in the
// thread. The reply is persisted only on success; on failure the error
// carries completion.ErrCompletionFailed and nothing is pushed.
func (r *Responder) Send(ctx context.Context, input SendInput) (Exchange, error) {
	bot, err := r.bots.GetOwned(ctx, input.UserID, input.BotID)
	if err != nil {
		return Exchange{}, err
	}

	userMsg, err := r.store.Append(ctx, messages.AppendInput{
		Sender:        identity.Ref{ID: input.UserID, Kind: identity.KindUser},
		Receiver:      identity.Ref{ID: bot.ID, Kind: identity.KindBot},
		Text:          input.Text,
		AttachmentURL: input.AttachmentURL,
	})
	if err != nil {
		return Exchange{}, err
	}

	reply, err := r.completer.Complete(ctx, bot.ModelID, input.Text)
	if err != nil {
		r.logger.Warn("bot reply failed",
			slog.String("bot_id", bot.ID),
			slog.Any("error", err),
		)
		// The user's message stays persisted; fan-out still announces it so
		// the sender's other sessions stay consistent, and the partial
		// exchange rides along with the error.
		r.push(input.OriginSessionID, userMsg)
		return Exchange{UserMessage: userMsg}, err
	}

	botMsg, err := r.store.Append(ctx, messages.AppendInput{
		Sender:   identity.Ref{ID: bot.ID, Kind: identity.KindBot},
		Receiver: identity.Ref{ID: input.UserID, Kind: identity.KindUser},
		Text:     reply,
	})
	if err != nil {
		r.push(input.OriginSessionID, userMsg)
		return Exchange{UserMessage: userMsg}, fmt.Errorf("persist bot reply: %w", err)
	}

	r.push(input.OriginSessionID, userMsg, botMsg)
	return Exchange{UserMessage: userMsg, BotMessage: botMsg}, nil
}

// push hands messages to fan-out off the request path.
func (r *Responder) push(originSessionID string, msgs ...messages.Message) {
	if r.pusher == nil {
		return
	}
	go r.pusher.NotifyAll(originSessionID, msgs...)
}
