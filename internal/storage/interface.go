package storage

import (
	"context"

	"github.com/mcoot/chathub/internal/model"
)

// PlayerRepository persists player records
type PlayerRepository interface {
	// FindPlayerByNo returns model.ErrPlayerNotFound when no record exists
	FindPlayerByNo(ctx context.Context, no model.PlayerNo) (*model.Player, error)
	FindPlayerByFingerprint(ctx context.Context, fingerprint string) (*model.Player, error)
	FindPlayerByNickname(ctx context.Context, nickname string) (*model.Player, error)

	// CreatePlayer assigns player.No and stores the record. If a player with the same
	// fingerprint already exists, player is overwritten with that record instead.
	CreatePlayer(ctx context.Context, player *model.Player) error

	// SavePlayer updates an existing record. It returns model.ErrDuplicateNickname
	// when the nickname belongs to another player.
	SavePlayer(ctx context.Context, player *model.Player) error
}

// LogSink receives login and fault records
type LogSink interface {
	AppendLoginLog(ctx context.Context, entry model.LoginLog) error
	AppendErrorLog(ctx context.Context, entry model.ErrorLog) error
}

// Storage defines the interface for data persistence
type Storage interface {
	PlayerRepository
	LogSink

	Close() error
}
