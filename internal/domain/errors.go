package domain

import "errors"

var (
	ErrInvalidCode    = errors.New("invalid meeting code")
	ErrRoomNotFound   = errors.New("meeting not found")
	ErrRoomEnded      = errors.New("meeting has ended")
	ErrRoomFull       = errors.New("meeting is full")
	ErrAlreadyJoined  = errors.New("already joined the meeting")
	ErrNotInRoom      = errors.New("not in the meeting")
	ErrNotHost        = errors.New("only the host can do this")
	ErrScreenShareOff = errors.New("screen sharing is disabled in this meeting")
)
