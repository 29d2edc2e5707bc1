package api

import (
	"errors"

	"github.com/me/authapp/pkg/model"
)

// FallbackMessage is shown when a failure carries no usable text.
const FallbackMessage = "An unexpected error occurred"

// ErrorMessage picks the message to show a user for err: the server's
// message, then the server's error field, then the transport error, then
// FallbackMessage.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.ServerMessage != "":
			return apiErr.ServerMessage
		case apiErr.ServerError != "":
			return apiErr.ServerError
		case apiErr.Err != nil && apiErr.Err.Error() != "":
			return apiErr.Err.Error()
		}
		return FallbackMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackMessage
}
