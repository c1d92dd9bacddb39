package memory

import (
	"context"
	"sync"

	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/storage"
)

// Maximum log entries retained per log
const maxLogEntries = 10000

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	lastNo           model.PlayerNo
	players          map[model.PlayerNo]*model.Player
	fingerprintIndex map[string]model.PlayerNo
	nicknameIndex    map[string]model.PlayerNo

	loginLogs []model.LoginLog
	errorLogs []model.ErrorLog
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:          make(map[model.PlayerNo]*model.Player),
		fingerprintIndex: make(map[string]model.PlayerNo),
		nicknameIndex:    make(map[string]model.PlayerNo),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Player operations

func (s *Storage) FindPlayerByNo(ctx context.Context, no model.PlayerNo) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(no)
}

func (s *Storage) FindPlayerByFingerprint(ctx context.Context, fingerprint string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	no, ok := s.fingerprintIndex[fingerprint]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.get(no)
}

func (s *Storage) FindPlayerByNickname(ctx context.Context, nickname string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	no, ok := s.nicknameIndex[nickname]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.get(no)
}

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if no, ok := s.fingerprintIndex[player.Fingerprint]; ok {
		*player = *s.players[no]
		return nil
	}
	if player.Nickname != "" {
		if _, taken := s.nicknameIndex[player.Nickname]; taken {
			return model.ErrDuplicateNickname
		}
	}

	s.lastNo++
	player.No = s.lastNo
	stored := *player
	s.players[stored.No] = &stored
	s.fingerprintIndex[stored.Fingerprint] = stored.No
	if stored.Nickname != "" {
		s.nicknameIndex[stored.Nickname] = stored.No
	}
	return nil
}

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.players[player.No]
	if !ok {
		return model.ErrPlayerNotFound
	}
	if player.Nickname != "" {
		if owner, taken := s.nicknameIndex[player.Nickname]; taken && owner != player.No {
			return model.ErrDuplicateNickname
		}
	}

	if prev.Nickname != player.Nickname {
		delete(s.nicknameIndex, prev.Nickname)
		if player.Nickname != "" {
			s.nicknameIndex[player.Nickname] = player.No
		}
	}
	stored := *player
	s.players[player.No] = &stored
	return nil
}

// get returns a copy of the record. Caller must hold s.mu.
func (s *Storage) get(no model.PlayerNo) (*model.Player, error) {
	p, ok := s.players[no]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

// Log operations

func (s *Storage) AppendLoginLog(ctx context.Context, entry model.LoginLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginLogs = appendCapped(s.loginLogs, entry)
	return nil
}

func (s *Storage) AppendErrorLog(ctx context.Context, entry model.ErrorLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorLogs = appendCapped(s.errorLogs, entry)
	return nil
}

// LoginLogs returns a copy of the retained login log
func (s *Storage) LoginLogs() []model.LoginLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.LoginLog(nil), s.loginLogs...)
}

// ErrorLogs returns a copy of the retained error log
func (s *Storage) ErrorLogs() []model.ErrorLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ErrorLog(nil), s.errorLogs...)
}

func appendCapped[T any](entries []T, entry T) []T {
	entries = append(entries, entry)
	if len(entries) > maxLogEntries {
		entries = entries[len(entries)-maxLogEntries:]
	}
	return entries
}
