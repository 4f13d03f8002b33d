package common

import (
	"errors"
	"net/http"
)

// Error kinds. Concrete errors unwrap to exactly one of these.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("service unavailable")
)

// Error is a business error carrying a user-facing message and its kind
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// NewError creates an error of the given kind
func NewError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Forum errors
var (
	ErrBoardNotFound   = NewError(ErrNotFound, "board not found")
	ErrTopicNotFound   = NewError(ErrNotFound, "topic not found")
	ErrMessageNotFound = NewError(ErrNotFound, "message not found")
	ErrPollNotFound    = NewError(ErrNotFound, "poll not found")
	ErrReportNotFound  = NewError(ErrNotFound, "report not found")
	ErrNoVote          = NewError(ErrNotFound, "no vote to remove")

	ErrLoginRequired = NewError(ErrUnauthorized, "login required")

	ErrNotAuthor          = NewError(ErrForbidden, "only the author or a moderator may do this")
	ErrModeratorOnly      = NewError(ErrForbidden, "moderator capability required")
	ErrBoardAccess        = NewError(ErrForbidden, "posting to this board is not allowed")
	ErrTopicLocked        = NewError(ErrForbidden, "topic is locked")
	ErrFirstMessageDelete = NewError(ErrForbidden, "the first message cannot be deleted, delete the topic instead")
	ErrVotingClosed       = NewError(ErrForbidden, "voting is closed")
	ErrGuestVote          = NewError(ErrForbidden, "guests cannot vote in this poll")
	ErrVoteChangeDisabled = NewError(ErrForbidden, "votes cannot be changed in this poll")

	ErrAlreadyVoted        = NewError(ErrConflict, "already voted")
	ErrDuplicateReport     = NewError(ErrConflict, "an open report for this message already exists")
	ErrReportAlreadyClosed = NewError(ErrConflict, "report is already closed")

	ErrSubjectRequired = NewError(ErrValidation, "subject is required")
	ErrSubjectTooLong  = NewError(ErrValidation, "subject is too long")
	ErrBodyRequired    = NewError(ErrValidation, "body is required")
	ErrBodyTooLong     = NewError(ErrValidation, "body is too long")
	ErrSameBoard       = NewError(ErrValidation, "topic is already in that board")
	ErrInvalidChoices  = NewError(ErrValidation, "invalid poll choices")
	ErrPollQuestion    = NewError(ErrValidation, "poll question is required")
	ErrPollChoiceCount = NewError(ErrValidation, "poll needs between two and the allowed number of choices")
	ErrPollMaxVotes    = NewError(ErrValidation, "max votes must be between 1 and the number of choices")
	ErrCommentRequired = NewError(ErrValidation, "comment is required")
	ErrCommentTooLong  = NewError(ErrValidation, "comment is too long")
	ErrInvalidStatus   = NewError(ErrValidation, "invalid report status")
)

// StatusFromError maps an error to its HTTP status
func StatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
