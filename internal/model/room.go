package model

import (
	"fmt"
	"time"
)

// RoomID identifies a chat room. Valid rooms are numbered from 1.
type RoomID int

// NoRoom means a session is not in any chat room
const NoRoom RoomID = 0

// GroupName returns the broadcast group used for a room's members
func (id RoomID) GroupName() string {
	return fmt.Sprintf("ChannelChat:%d", id)
}

// MessageType distinguishes room notifications from chat messages
type MessageType int

const (
	MessageEnter MessageType = iota + 1
	MessageLeave
	MessageSend
)

// String returns the message type name
func (t MessageType) String() string {
	switch t {
	case MessageEnter:
		return "enter"
	case MessageLeave:
		return "leave"
	case MessageSend:
		return "send"
	default:
		return "unknown"
	}
}

// Message is one entry of a room's history or a room notification
type Message struct {
	Type      MessageType
	ID        int64 // per-room sequence id, zero for notifications
	PlayerNo  PlayerNo
	Nickname  string
	IconID    uint32
	Text      string
	Timestamp time.Time
}

// RoomCount reports occupancy for one room
type RoomCount struct {
	RoomID    RoomID
	UserCount int
	Capacity  int
}
