package chatbots

import "time"

// Bot is a chatbot contact owned by one user.
type Bot struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	ModelID     string    `json:"model_id"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateRequest is the input for creating a bot contact.
type CreateRequest struct {
	DisplayName string `json:"display_name"`
	ModelID     string `json:"model_id"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	IsDefault   bool   `json:"is_default,omitempty"`
}
