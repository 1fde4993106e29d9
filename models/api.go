package models

// APIResponse is a generic structure for all API responses
type APIResponse struct {
	Status  string      `json:"status"`            // "success" or "error"
	Code    int         `json:"code"`              // HTTP status code
	Message string      `json:"message,omitempty"` // Human-readable message
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds detailed error information
type APIError struct {
	Type    string `json:"type,omitempty"` // ValidationError, NotFoundError, ConflictError, ...
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// SuccessResponse wraps data in a success envelope.
func SuccessResponse(code int, message string, data interface{}) APIResponse {
	return APIResponse{Status: "success", Code: code, Message: message, Data: data}
}

// ErrorResponse builds an error envelope.
func ErrorResponse(code int, message string, apiErr *APIError) APIResponse {
	return APIResponse{Status: "error", Code: code, Message: message, Error: apiErr}
}
