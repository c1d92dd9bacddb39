package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealth(v)
	case SessionList:
		o.printSessions(v)
	case CountResult:
		fmt.Fprintf(o.w, "%s: %d\n", v.label, v.Count)
	case ResetResult:
		fmt.Fprintf(o.w, "Removed %s sessions\n", color.YellowString("%d", v.Removed))
	case RoomList:
		o.printRooms(v.Rooms)
	case Room:
		o.printRooms([]Room{v})
	case SchedulerList:
		o.printSchedulers(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type (matches API)
type HealthResult struct {
	Status   string `json:"status"`
	ServerID string `json:"server_id"`
}

// Session response type
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

// SessionList response type
type SessionList struct {
	Sessions []Session `json:"sessions"`
}

// CountResult response type; label names the counted thing in text output
type CountResult struct {
	Count int `json:"count"`
	label string
}

// ResetResult response type
type ResetResult struct {
	Removed int `json:"removed"`
}

// Room response type
type Room struct {
	RoomID    int `json:"room_id"`
	UserCount int `json:"user_count"`
	Capacity  int `json:"capacity"`
}

// RoomList response type
type RoomList struct {
	Rooms []Room `json:"rooms"`
}

// Scheduler response type
type Scheduler struct {
	Name     string `json:"name"`
	Workers  int    `json:"workers"`
	Queued   int    `json:"queued"`
	Capacity int    `json:"capacity"`
	Policy   string `json:"policy"`
	Executed uint64 `json:"executed"`
	Failed   uint64 `json:"failed"`
}

// SchedulerList response type
type SchedulerList struct {
	Schedulers []Scheduler `json:"schedulers"`
}

func (o *Output) printHealth(h HealthResult) {
	status := color.GreenString(h.Status)
	if h.Status != "ok" {
		status = color.RedString(h.Status)
	}
	fmt.Fprintf(o.w, "Status: %s\n", status)
	if h.ServerID != "" {
		fmt.Fprintf(o.w, "Server: %s\n", h.ServerID)
	}
}

func (o *Output) printSessions(l SessionList) {
	fmt.Fprintf(o.w, "Sessions (%d):\n", len(l.Sessions))
	for _, s := range l.Sessions {
		state := color.GreenString("attached")
		if !s.Attached {
			state = color.YellowString("detached")
		}
		if s.Reserved {
			state = color.RedString("reserved")
		}
		room := "-"
		if s.RoomID != 0 {
			room = fmt.Sprintf("%d", s.RoomID)
		}
		fmt.Fprintf(o.w, "  #%d %q room=%s offset=%d %s (updated %s)\n",
			s.PlayerNo, s.Nickname, room, s.Offset, state, s.UpdatedAt.Format(time.RFC3339))
	}
}

func (o *Output) printRooms(rooms []Room) {
	for _, r := range rooms {
		fmt.Fprintf(o.w, "Room %2d: %s/%d\n", r.RoomID, fill(r), r.Capacity)
	}
}

// fill colors a room's user count by how close it is to capacity
func fill(r Room) string {
	switch {
	case r.Capacity > 0 && r.UserCount >= r.Capacity:
		return color.RedString("%d", r.UserCount)
	case r.Capacity > 0 && r.UserCount*10 >= r.Capacity*8:
		return color.YellowString("%d", r.UserCount)
	default:
		return color.GreenString("%d", r.UserCount)
	}
}

func (o *Output) printSchedulers(l SchedulerList) {
	for _, s := range l.Schedulers {
		failed := fmt.Sprintf("%d", s.Failed)
		if s.Failed > 0 {
			failed = color.RedString("%d", s.Failed)
		}
		fmt.Fprintf(o.w, "%s: workers=%d queued=%d/%d policy=%s executed=%d failed=%s\n",
			s.Name, s.Workers, s.Queued, s.Capacity, s.Policy, s.Executed, failed)
	}
}
