package room

import "errors"

var (
	// ErrRoomNotFound is returned when a room code is not in the store.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomInactive is returned when a vote arrives after the poll ended.
	ErrRoomInactive = errors.New("room inactive")

	// ErrMemberNotFound is returned when the voting connection is not a
	// tracked member of the room, e.g. a stale session.
	ErrMemberNotFound = errors.New("member not found")

	// ErrAlreadyVoted is returned on a second vote from the same connection.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrInvalidOption is returned when the voted option is not one of the
	// room's configured options.
	ErrInvalidOption = errors.New("invalid option")

	// ErrNotInRoom is returned when a vote arrives on a connection that
	// never joined a room.
	ErrNotInRoom = errors.New("not in a room")

	// ErrCodeExhausted is returned when the store cannot generate a unique
	// room code within its retry limit.
	ErrCodeExhausted = errors.New("could not generate unique room code")
)
