package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParticipants  = errors.New("invalid participants")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotMutuallyConnected = errors.New("users are not mutually connected")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrSenderNotParticipant = errors.New("sender is not a participant of the conversation")
	ErrNotParticipant       = errors.New("user is not a participant of the conversation")
	ErrEmptyMessage         = errors.New("message body is empty")
	ErrMessageTooLong       = errors.New("message body is too long")
	ErrStorageFailure       = errors.New("storage failure")
)

// StorageError wraps a persistence error so that errors.Is(err, ErrStorageFailure)
// holds while the driver error stays reachable for logging.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorageFailure, err))
}

// IsValidation reports whether err is one of the caller-fixable errors.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidParticipants) ||
		errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrMessageTooLong)
}
