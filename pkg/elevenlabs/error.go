package elevenlabs

import "fmt"

// Error represents a synthesis API error.
type Error struct {
	// Status is the error status string from the API, if any.
	Status string `json:"status"`

	// Message is the error message.
	Message string `json:"message"`

	// HTTPStatus is the HTTP status code.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("elevenlabs: %s: %s (http %d)", e.Status, e.Message, e.HTTPStatus)
	}
	return fmt.Sprintf("elevenlabs: %s (http %d)", e.Message, e.HTTPStatus)
}

// IsRateLimit reports whether this is a rate limit error.
func (e *Error) IsRateLimit() bool {
	return e.HTTPStatus == 429
}

// IsInvalidAPIKey reports whether this is an authentication error.
func (e *Error) IsInvalidAPIKey() bool {
	return e.HTTPStatus == 401
}

// IsServerError reports whether this is a server-side error, worth one
// retry at the caller's discretion.
func (e *Error) IsServerError() bool {
	return e.HTTPStatus >= 500
}
