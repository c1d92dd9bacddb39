package response

import (
	"time"

	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/scheduler"
)

// Session represents a player session in API responses
type Session struct {
	PlayerNo     int64     `json:"player_no"`
	ConnectionID string    `json:"connection_id,omitempty"`
	RoomID       int       `json:"room_id"`
	Nickname     string    `json:"nickname"`
	IconID       uint32    `json:"icon_id"`
	Offset       int64     `json:"session_offset"`
	Attached     bool      `json:"attached"`
	Reserved     bool      `json:"reserved_for_delete,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// SessionFromModel converts a model.Session
func SessionFromModel(s model.Session) Session {
	return Session{
		PlayerNo:     int64(s.PlayerNo),
		ConnectionID: string(s.ConnectionID),
		RoomID:       int(s.RoomID),
		Nickname:     s.Nickname,
		IconID:       s.IconID,
		Offset:       s.Offset,
		Attached:     s.Attached(),
		Reserved:     s.ReserveForDelete,
		UpdatedAt:    s.UpdatedAt,
		LastLoginAt:  s.LastLoginAt,
	}
}

// SessionList is the response for listing sessions
type SessionList struct {
	Sessions []Session `json:"sessions"`
}

// SessionListFromModel converts a slice of sessions
func SessionListFromModel(sessions []model.Session) SessionList {
	list := SessionList{Sessions: make([]Session, len(sessions))}
	for i, s := range sessions {
		list.Sessions[i] = SessionFromModel(s)
	}
	return list
}

// Count is the response for the count endpoints
type Count struct {
	Count int `json:"count"`
}

// Reset is the response for resetting sessions
type Reset struct {
	Removed int `json:"removed"`
}

// Room represents room occupancy
type Room struct {
	RoomID    int `json:"room_id"`
	UserCount int `json:"user_count"`
	Capacity  int `json:"capacity"`
}

// RoomFromModel converts a model.RoomCount
func RoomFromModel(c model.RoomCount) Room {
	return Room{RoomID: int(c.RoomID), UserCount: c.UserCount, Capacity: c.Capacity}
}

// RoomList is the response for listing rooms
type RoomList struct {
	Rooms []Room `json:"rooms"`
}

// RoomListFromModel converts a slice of room counts
func RoomListFromModel(counts []model.RoomCount) RoomList {
	list := RoomList{Rooms: make([]Room, len(counts))}
	for i, c := range counts {
		list.Rooms[i] = RoomFromModel(c)
	}
	return list
}

// Scheduler represents one scheduler's counters
type Scheduler struct {
	Name     string `json:"name"`
	Workers  int    `json:"workers"`
	Queued   int    `json:"queued"`
	Capacity int    `json:"capacity"`
	Policy   string `json:"policy"`
	Executed uint64 `json:"executed"`
	Failed   uint64 `json:"failed"`
}

// Schedulers is the response for scheduler stats
type Schedulers struct {
	Schedulers []Scheduler `json:"schedulers"`
}

// SchedulersFromStats converts scheduler stats
func SchedulersFromStats(stats []scheduler.Stats) Schedulers {
	out := Schedulers{Schedulers: make([]Scheduler, len(stats))}
	for i, s := range stats {
		out.Schedulers[i] = Scheduler{
			Name:     s.Name,
			Workers:  s.Workers,
			Queued:   s.Queued,
			Capacity: s.Capacity,
			Policy:   s.Policy,
			Executed: s.Executed,
			Failed:   s.Failed,
		}
	}
	return out
}

// Health is the response for the health check
type Health struct {
	Status   string `json:"status"`
	ServerID string `json:"server_id"`
}
