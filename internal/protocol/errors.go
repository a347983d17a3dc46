package protocol

import (
	"errors"

	"github.com/dkeye/Meet/internal/domain"
)

// ErrorCode is the machine-readable reason carried by an error frame.
type ErrorCode string

const (
	CodeBadPayload    ErrorCode = "bad_payload"
	CodeInvalidCode   ErrorCode = "invalid_code"
	CodeInvalidName   ErrorCode = "invalid_name"
	CodeRoomNotFound  ErrorCode = "room_not_found"
	CodeRoomEnded     ErrorCode = "room_ended"
	CodeRoomFull      ErrorCode = "room_full"
	CodeAlreadyJoined ErrorCode = "already_joined"
	CodeNotInRoom     ErrorCode = "not_in_room"
	CodeNotHost       ErrorCode = "not_host"
	CodeScreenShare   ErrorCode = "screen_share_disabled"
	CodeRateLimited   ErrorCode = "rate_limited"
	CodeInternal      ErrorCode = "internal"
)

var ErrRateLimited = errors.New("too many join attempts")

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

var codeErrors = []struct {
	code ErrorCode
	err  error
}{
	{CodeInvalidCode, domain.ErrInvalidCode},
	{CodeInvalidName, domain.ErrUsernameEmpty},
	{CodeInvalidName, domain.ErrUsernameTooLong},
	{CodeRoomNotFound, domain.ErrRoomNotFound},
	{CodeRoomEnded, domain.ErrRoomEnded},
	{CodeRoomFull, domain.ErrRoomFull},
	{CodeAlreadyJoined, domain.ErrAlreadyJoined},
	{CodeNotInRoom, domain.ErrNotInRoom},
	{CodeNotHost, domain.ErrNotHost},
	{CodeScreenShare, domain.ErrScreenShareOff},
	{CodeRateLimited, ErrRateLimited},
}

// NewError maps a domain error to an error frame payload.
func NewError(err error) Error {
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return Error{Code: ce.code, Message: ce.err.Error()}
		}
	}
	return Error{Code: CodeInternal, Message: err.Error()}
}

// Err maps an error frame back to the matching sentinel.
func (e Error) Err() error {
	for _, ce := range codeErrors {
		if ce.code == e.Code {
			return ce.err
		}
	}
	return errors.New(e.Message)
}
