package rest

// ErrorResponse is the JSON body sent with 4xx and 5xx responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
