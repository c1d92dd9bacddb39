package model

import "time"

// PlayerNo is the stable numeric identity of a player
type PlayerNo int64

// Player is the persisted record of a player account
type Player struct {
	No          PlayerNo  `json:"no"`
	Fingerprint string    `json:"fingerprint"` // hashed identity token presented at login
	Nickname    string    `json:"nickname"`
	IconID      uint32    `json:"icon_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}
