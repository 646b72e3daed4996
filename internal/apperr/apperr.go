// Package apperr defines the user-visible error codes the client can raise.
package apperr

import "fmt"

// Code identifies a user-visible error.
type Code string

const (
	SignIn401                    Code = "SIGN_IN_401"
	SignInServerFailure          Code = "SIGN_IN_SERVER_FAILURE"
	CannotCreateNewStreetOnPhone Code = "CANNOT_CREATE_NEW_STREET_ON_PHONE"
	NewStreetServerFailure       Code = "NEW_STREET_SERVER_FAILURE"
	NoStreet                     Code = "NO_STREET"
	GenericError                 Code = "GENERIC_ERROR"
)

var messages = map[Code]string{
	SignIn401:                    "Your sign-in has expired. Please sign in again.",
	SignInServerFailure:          "The server is temporarily unavailable. Please try again later.",
	CannotCreateNewStreetOnPhone: "This client is read-only and cannot create new streets.",
	NewStreetServerFailure:       "The server could not create a new street.",
	NoStreet:                     "That street could not be found.",
	GenericError:                 "Something went wrong.",
}

// Message returns the text shown for code.
func Message(code Code) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return messages[GenericError]
}

// Error is a user-visible error occurrence. Fatal errors end the current
// bootstrap; the user has to act (sign in again, retry later).
type Error struct {
	Code  Code
	Fatal bool
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, Message(e.Code))
}
