package services

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Error kinds. Every error returned by this package matches at most one of them with
// errors.Is; anything else is a store failure.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidInput     = errors.New("invalid input")
)

var (
	ErrEventNotFound          = coded("event_not_found", "event not found", ErrNotFound)
	ErrInvitationNotFound     = coded("invitation_not_found", "invitation not found", ErrNotFound)
	ErrUserNotFound           = coded("user_not_found", "user not found", ErrNotFound)
	ErrPendingRequestNotFound = coded("join_request_not_found", "join request not found", ErrNotFound)
	ErrPhotoNotFound          = coded("photo_not_found", "photo not found", ErrNotFound)

	ErrAlreadyCheckedIn      = coded("already_checked_in", "already checked in", ErrConflict)
	ErrAlreadyGuest          = coded("already_guest", "already a guest of this event", ErrConflict)
	ErrAlreadyPending        = coded("already_pending", "join request already pending", ErrConflict)
	ErrIsHost                = coded("is_host", "host cannot join their own event", ErrConflict)
	ErrEventFull             = coded("event_full", "event is full", ErrConflict)
	ErrEventCancelled        = coded("event_cancelled", "event is cancelled", ErrConflict)
	ErrInvitationNotAccepted = coded("invitation_not_accepted", "invitation has not been accepted", ErrConflict)

	ErrNotHost   = coded("not_host", "only the host can do this", ErrForbidden)
	ErrNotMember = coded("not_member", "only the host or a guest can do this", ErrForbidden)
)

var baseCodes = []struct {
	kind error
	code string
}{
	{ErrNotAuthenticated, "not_authenticated"},
	{ErrInvalidInput, "invalid_input"},
	{ErrForbidden, "forbidden"},
	{ErrNotFound, "not_found"},
	{ErrConflict, "conflict"},
}

type kindError struct {
	msg  string
	code string
	kind error
}

func kind(msg string, k error) error {
	return &kindError{msg: msg, kind: k}
}

func coded(code, msg string, k error) error {
	return &kindError{msg: msg, code: code, kind: k}
}

// ErrorCode returns the machine readable code of err: the code of its specific kind
// when it has one, else the code of its base kind. Store failures have no code.
func ErrorCode(err error) string {
	var ke *kindError
	if errors.As(err, &ke) && ke.code != "" {
		return ke.code
	}
	for _, b := range baseCodes {
		if errors.Is(err, b.kind) {
			return b.code
		}
	}
	return ""
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// notFound maps mongo.ErrNoDocuments to kind and wraps every other store error
func notFound(err error, k error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return k
	}
	return fmt.Errorf("%s: %w", op, err)
}

func authenticated(userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	return nil
}
