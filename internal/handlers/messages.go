package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pingline/pingline/internal/auth"
	"github.com/pingline/pingline/internal/directory"
	"github.com/pingline/pingline/internal/fanout"
	"github.com/pingline/pingline/internal/identity"
	"github.com/pingline/pingline/internal/messages"
	"github.com/pingline/pingline/internal/presence"
)

// OriginSessionHeader carries the sender's socket session ID on REST sends so
// fan-out can skip the originating connection.
const OriginSessionHeader = "X-Client-Session"

// MessagesHandler serves the sidebar contact list, conversation threads and
// direct user-to-user sends.
type MessagesHandler struct {
	directory *directory.Service
	store     messages.Store
	presence  *presence.Registry
	notifier  *fanout.Notifier
	logger    *slog.Logger
}

// NewMessagesHandler creates the messages handler.
func NewMessagesHandler(log *slog.Logger, dir *directory.Service, store messages.Store, reg *presence.Registry, notifier *fanout.Notifier) *MessagesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MessagesHandler{
		directory: dir,
		store:     store,
		presence:  reg,
		notifier:  notifier,
		logger:    log.With(slog.String("handler", "messages")),
	}
}

// Register mounts the message routes.
func (h *MessagesHandler) Register(e *echo.Echo) {
	group := e.Group("/messages")
	group.GET("/users", h.ListContacts)
	group.GET("/:id", h.Thread)
	group.POST("/send/:id", h.Send)
}

type sendRequest struct {
	Text          string `json:"text"`
	AttachmentURL string `json:"attachment_url,omitempty"`
}

// ListContacts returns every other human user, decorated with live presence.
func (h *MessagesHandler) ListContacts(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	contacts, err := h.directory.ListHumans(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for i := range contacts {
		contacts[i].Online = h.presence.IsOnline(contacts[i].ID)
	}
	return c.JSON(http.StatusOK, contacts)
}

// Thread returns the full conversation between the caller and a contact,
// oldest first.
func (h *MessagesHandler) Thread(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	contactID := strings.TrimSpace(c.Param("id"))
	if contactID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "contact id is required")
	}
	if _, err := h.directory.Resolve(c.Request().Context(), contactID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "contact not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	thread, err := h.store.Thread(c.Request().Context(), userID, contactID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, thread)
}

// Send appends a user-to-user message and fans it out to live sessions.
func (h *MessagesHandler) Send(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	receiverID := strings.TrimSpace(c.Param("id"))
	if receiverID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "contact id is required")
	}
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := h.store.Append(c.Request().Context(), messages.AppendInput{
		Sender:        identity.Ref{ID: userID, Kind: identity.KindUser},
		Receiver:      identity.Ref{ID: receiverID, Kind: identity.KindUser},
		Text:          req.Text,
		AttachmentURL: req.AttachmentURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, messages.ErrEmptyBody):
			return echo.NewHTTPError(http.StatusBadRequest, "message is empty")
		case errors.Is(err, messages.ErrSelfAddressed):
			return echo.NewHTTPError(http.StatusBadRequest, "cannot message yourself")
		case errors.Is(err, messages.ErrReceiverNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "contact not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	origin := c.Request().Header.Get(OriginSessionHeader)
	go h.notifier.Notify(msg, origin)

	return c.JSON(http.StatusCreated, msg)
}
