package model

import "time"

// LoginLog records a successful login or reconnect
type LoginLog struct {
	PlayerNo     PlayerNo
	ConnectionID ConnectionID
	ServerID     string
	Reconnect    bool
	At           time.Time
}

// ErrorLog records a fault captured while executing a command
type ErrorLog struct {
	ServerID string
	PlayerNo PlayerNo
	Command  string
	Message  string
	Stack    string
	At       time.Time
}
