package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pingline/pingline/internal/auth"
	"github.com/pingline/pingline/internal/chatbots"
	"github.com/pingline/pingline/internal/completion"
	"github.com/pingline/pingline/internal/messages"
	"github.com/pingline/pingline/internal/responder"
)

// ChatbotsHandler serves bot contact management and the bot send pipeline.
type ChatbotsHandler struct {
	bots         *chatbots.Service
	responder    *responder.Responder
	defaultModel string
	logger       *slog.Logger
}

// NewChatbotsHandler creates the chatbots handler. defaultModel backs bot
// creation requests that omit a model.
func NewChatbotsHandler(log *slog.Logger, botService *chatbots.Service, resp *responder.Responder, defaultModel string) *ChatbotsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ChatbotsHandler{
		bots:         botService,
		responder:    resp,
		defaultModel: defaultModel,
		logger:       log.With(slog.String("handler", "chatbots")),
	}
}

// Register mounts the chatbot routes.
func (h *ChatbotsHandler) Register(e *echo.Echo) {
	group := e.Group("/chatbots")
	group.POST("/create", h.Create)
	group.GET("", h.List)
	group.DELETE("/:id", h.Delete)
	group.POST("/send/:id", h.Send)
}

// Create registers a new bot contact for the caller.
func (h *ChatbotsHandler) Create(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	var req chatbots.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "display name is required")
	}
	if strings.TrimSpace(req.ModelID) == "" {
		req.ModelID = h.defaultModel
	}

	bot, err := h.bots.Create(c.Request().Context(), userID, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, bot)
}

// List returns the caller's bots, newest first.
func (h *ChatbotsHandler) List(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	bots, err := h.bots.ListByOwner(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, bots)
}

// Delete removes one of the caller's bots and its conversation history.
func (h *ChatbotsHandler) Delete(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	botID := strings.TrimSpace(c.Param("id"))
	if botID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bot id is required")
	}
	if err := h.bots.Delete(c.Request().Context(), userID, botID); err != nil {
		switch {
		case errors.Is(err, chatbots.ErrBotNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "chatbot not found")
		case errors.Is(err, chatbots.ErrNotOwner):
			return echo.NewHTTPError(http.StatusForbidden, "chatbot owned by another user")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Send runs one exchange with a bot: the user's message is persisted, the
// model replies, and both messages are returned.
func (h *ChatbotsHandler) Send(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	botID := strings.TrimSpace(c.Param("id"))
	if botID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bot id is required")
	}
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	exchange, err := h.responder.Send(c.Request().Context(), responder.SendInput{
		UserID:          userID,
		BotID:           botID,
		Text:            req.Text,
		AttachmentURL:   req.AttachmentURL,
		OriginSessionID: c.Request().Header.Get(OriginSessionHeader),
	})
	if err != nil {
		switch {
		case errors.Is(err, chatbots.ErrBotNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "chatbot not found")
		case errors.Is(err, chatbots.ErrNotOwner):
			return echo.NewHTTPError(http.StatusForbidden, "chatbot owned by another user")
		case errors.Is(err, messages.ErrEmptyBody):
			return echo.NewHTTPError(http.StatusBadRequest, "message is empty")
		case errors.Is(err, completion.ErrCompletionFailed):
			return echo.NewHTTPError(http.StatusBadGateway, "chatbot is unavailable")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, exchange)
}
