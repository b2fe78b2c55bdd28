// Package client is the Go client for the pingline chat API: a thin REST
// wrapper plus a Conversation view model that reconciles local state with
// pushed events.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pingline/pingline/internal/chatbots"
	"github.com/pingline/pingline/internal/directory"
	"github.com/pingline/pingline/internal/messages"
	"github.com/pingline/pingline/internal/responder"
	"github.com/pingline/pingline/internal/users"
)

// OriginSessionHeader mirrors the server's origin-session header: sends carry
// the socket session ID so the server's fan-out skips this connection.
const OriginSessionHeader = "X-Client-Session"

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client calls the pingline REST API.
type Client struct {
	baseURL string
	http    *http.Client

	mu        sync.RWMutex
	token     string
	sessionID string
}

// New creates a client for the given server base URL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken installs the bearer token used on subsequent calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// SetSessionID records the socket session ID announced by the server's hello
// event. Subsequent sends carry it so fan-out skips the originating socket.
func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// TokenResponse is returned by Signup and Login.
type TokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      users.User `json:"user"`
}

// Signup registers a new account and installs the returned token.
func (c *Client) Signup(ctx context.Context, req users.CreateRequest) (TokenResponse, error) {
	var resp TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", req, &resp); err != nil {
		return TokenResponse{}, err
	}
	c.SetToken(resp.Token)
	return resp, nil
}

// Login authenticates and installs the returned token.
func (c *Client) Login(ctx context.Context, username, password string) (TokenResponse, error) {
	var resp TokenResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return TokenResponse{}, err
	}
	c.SetToken(resp.Token)
	return resp, nil
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (users.User, error) {
	var u users.User
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &u)
	return u, err
}

// ListUsers returns every other human contact with presence flags.
func (c *Client) ListUsers(ctx context.Context) ([]directory.Contact, error) {
	var out []directory.Contact
	err := c.do(ctx, http.MethodGet, "/messages/users", nil, &out)
	return out, err
}

// ListBots returns the caller's bot contacts.
func (c *Client) ListBots(ctx context.Context) ([]chatbots.Bot, error) {
	var out []chatbots.Bot
	err := c.do(ctx, http.MethodGet, "/chatbots", nil, &out)
	return out, err
}

// CreateBot registers a new bot contact.
func (c *Client) CreateBot(ctx context.Context, req chatbots.CreateRequest) (chatbots.Bot, error) {
	var bot chatbots.Bot
	err := c.do(ctx, http.MethodPost, "/chatbots/create", req, &bot)
	return bot, err
}

// DeleteBot removes one of the caller's bots.
func (c *Client) DeleteBot(ctx context.Context, botID string) error {
	return c.do(ctx, http.MethodDelete, "/chatbots/"+botID, nil, nil)
}

// Thread fetches the full conversation with a contact, oldest first.
func (c *Client) Thread(ctx context.Context, contactID string) ([]messages.Message, error) {
	var out []messages.Message
	err := c.do(ctx, http.MethodGet, "/messages/"+contactID, nil, &out)
	return out, err
}

type sendBody struct {
	Text          string `json:"text"`
	AttachmentURL string `json:"attachment_url,omitempty"`
}

// SendToUser sends a direct message to a human contact.
func (c *Client) SendToUser(ctx context.Context, contactID, text string) (messages.Message, error) {
	var msg messages.Message
	err := c.do(ctx, http.MethodPost, "/messages/send/"+contactID, sendBody{Text: text}, &msg)
	return msg, err
}

// SendToBot runs one exchange with a bot and returns both persisted messages.
func (c *Client) SendToBot(ctx context.Context, botID, text string) (responder.Exchange, error) {
	var exchange responder.Exchange
	err := c.do(ctx, http.MethodPost, "/chatbots/send/"+botID, sendBody{Text: text}, &exchange)
	return exchange, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token, sessionID := c.token, c.sessionID
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if sessionID != "" {
		req.Header.Set(OriginSessionHeader, sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
