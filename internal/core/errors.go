package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeEmptyMessage     = "empty_message"
	ErrCodeMessageTooLong   = "message_too_long"
	ErrCodeNotInRoom        = "not_in_room"
	ErrCodeUnknownRoom      = "unknown_room"
	ErrCodeDuplicateChannel = "duplicate_channel"
	ErrCodeProtectedChannel = "protected_channel"
	ErrCodeNotFound         = "not_found"
	ErrCodeNotOwner         = "not_owner"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrMessageTooLong   = errors.New("message is too long")
	ErrNotInRoom        = errors.New("not in room")
	ErrUnknownRoom      = errors.New("room not found")
	ErrDuplicateChannel = errors.New("channel already exists")
	ErrProtectedChannel = errors.New("channel is protected")
	ErrNotFound         = errors.New("message not found")
	ErrNotOwner         = errors.New("not the message owner")
	ErrSlowConsumer     = errors.New("event queue is full, message not accepted")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrBadRequest, ErrCodeBadRequest},
	{ErrEmptyMessage, ErrCodeEmptyMessage},
	{ErrMessageTooLong, ErrCodeMessageTooLong},
	{ErrNotInRoom, ErrCodeNotInRoom},
	{ErrUnknownRoom, ErrCodeUnknownRoom},
	{ErrDuplicateChannel, ErrCodeDuplicateChannel},
	{ErrProtectedChannel, ErrCodeProtectedChannel},
	{ErrNotFound, ErrCodeNotFound},
	{ErrNotOwner, ErrCodeNotOwner},
	{ErrSlowConsumer, ErrCodeRateLimited},
}

// ToCoreError maps a domain error to its wire form. Unknown errors become
// ErrCodeInternal without leaking their text.
func ToCoreError(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return coreError(ec.code, err.Error())
		}
	}
	return coreError(ErrCodeInternal, "internal error")
}
