package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pingline/pingline/internal/auth"
	"github.com/pingline/pingline/internal/users"
)

// AuthHandler serves signup, login and the current-user endpoint.
type AuthHandler struct {
	users     *users.Service
	jwtSecret string
	expiresIn time.Duration
	logger    *slog.Logger
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(log *slog.Logger, userService *users.Service, jwtSecret string, expiresIn time.Duration) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		users:     userService,
		jwtSecret: jwtSecret,
		expiresIn: expiresIn,
		logger:    log.With(slog.String("handler", "auth")),
	}
}

// Register mounts the auth routes.
func (h *AuthHandler) Register(e *echo.Echo) {
	group := e.Group("/auth")
	group.POST("/signup", h.Signup)
	group.POST("/login", h.Login)
	group.GET("/me", h.Me)
}

// TokenResponse is returned by signup and login.
type TokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      users.User `json:"user"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Signup registers a new user and returns a token for it.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req users.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	user, err := h.users.Create(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			return echo.NewHTTPError(http.StatusBadRequest, "username already taken")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return h.issueToken(c, user)
}

// Login authenticates credentials and returns a token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	user, err := h.users.Authenticate(c.Request().Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return h.issueToken(c, user)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	user, err := h.users.Get(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) issueToken(c echo.Context, user users.User) error {
	token, expiresAt, err := auth.GenerateToken(user.ID, h.jwtSecret, h.expiresIn)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}
