package model

import "time"

// ConnectionID identifies a live transport connection
type ConnectionID string

// ConnectionRecord tracks a transport connection from connect until disconnect
type ConnectionRecord struct {
	ID           ConnectionID
	PlayerNo     PlayerNo  // zero until a login or reconnect binds a player
	AuthDeadline time.Time // zero once authenticated, which disables reaping
	ConnectedAt  time.Time
}

// Authenticated reports whether a player has been bound to the connection
func (r ConnectionRecord) Authenticated() bool {
	return r.PlayerNo != 0
}

// Expired reports whether the connection missed its authentication deadline
func (r ConnectionRecord) Expired(now time.Time) bool {
	return !r.AuthDeadline.IsZero() && r.AuthDeadline.Before(now)
}
