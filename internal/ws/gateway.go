package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pingline/pingline/internal/auth"
	"github.com/pingline/pingline/internal/event"
	"github.com/pingline/pingline/internal/presence"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The deployment fronts the gateway with a reverse proxy that
		// enforces origin policy.
		return true
	},
}

// Gateway upgrades authenticated requests into presence sessions.
type Gateway struct {
	registry *presence.Registry
	logger   *slog.Logger
}

// NewGateway creates the socket gateway over the presence registry.
func NewGateway(log *slog.Logger, registry *presence.Registry) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		registry: registry,
		logger:   log.With(slog.String("component", "ws")),
	}
}

// Register mounts the gateway on GET /ws.
func (g *Gateway) Register(e *echo.Echo) {
	e.GET("/ws", g.handleConnect)
}

// handleConnect authenticates the request, upgrades it, announces the session
// to the client and registers it for presence and fan-out.
func (g *Gateway) handleConnect(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return nil
	}

	sess := newSession(uuid.NewString(), userID, conn, g.logger)

	hello, err := event.New(event.TypeHello, event.HelloPayload{
		SessionID: sess.ID(),
		UserID:    userID,
	})
	if err != nil {
		g.logger.Warn("encode hello failed", slog.Any("error", err))
		conn.Close()
		return nil
	}
	sess.Send(hello)

	g.registry.Connect(sess)
	go sess.writePump()
	go func() {
		sess.readPump()
		g.registry.Disconnect(sess.ID())
	}()
	return nil
}
