package handlers

// ErrorResponse is the JSON body returned for every API error.
type ErrorResponse struct {
	Message string `json:"message"`
}
