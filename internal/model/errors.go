package model

import "errors"

// Common errors used across the application
var (
	// Session errors
	ErrNoSession             = errors.New("no session")
	ErrSessionOffsetMismatch = errors.New("session offset does not match")
	ErrTooFrequentLogin      = errors.New("login attempted too frequently")

	// Connection errors
	ErrConnectionNotFound = errors.New("connection not found")

	// Player errors
	ErrPlayerNotFound    = errors.New("player not found")
	ErrDuplicateNickname = errors.New("nickname is already taken")
	ErrInvalidNickname   = errors.New("invalid nickname")

	// Room errors
	ErrRoomNotAvailable = errors.New("room is not available")
	ErrSameRoom         = errors.New("player is already in this room")
	ErrRoomFull         = errors.New("room is full")
	ErrNoRoomAvailable  = errors.New("no room can be entered")
	ErrNotInRoom        = errors.New("player is not in a room")
	ErrInvalidMessage   = errors.New("invalid chat message")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")

	// Scheduler errors
	ErrQueueFull       = errors.New("command queue is full")
	ErrSchedulerClosed = errors.New("scheduler is closed")

	// Infrastructure errors
	ErrPersistence = errors.New("persistence failure")
)
