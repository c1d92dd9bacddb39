package model

import "time"

// Session is the reconnect-durable state of a logged-in player.
// It outlives any single transport connection.
type Session struct {
	PlayerNo     PlayerNo
	ConnectionID ConnectionID // empty while detached
	RoomID       RoomID       // NoRoom when not in a chat room
	Nickname     string
	IconID       uint32
	UpdatedAt    time.Time // sliding TTL timestamp
	LastLoginAt  time.Time
	// Offset increments on every login and reconnect; clients present the
	// last value they saw when reconnecting.
	Offset           int64
	ReserveForDelete bool

	// Last history message delivered to this player, per room
	LastReadRoomID    RoomID
	LastReadMessageID int64
}

// InRoom reports whether the session currently occupies a chat room
func (s Session) InRoom() bool {
	return s.RoomID != NoRoom
}

// Attached reports whether the session is bound to a live connection
func (s Session) Attached() bool {
	return s.ConnectionID != ""
}
