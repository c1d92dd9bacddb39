package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrPersistence, op, err)
}

// Player operations

func (s *Storage) FindPlayerByNo(ctx context.Context, no model.PlayerNo) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(no)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, persistErr("get player", err)
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, persistErr("decode player", err)
	}
	return &player, nil
}

func (s *Storage) FindPlayerByFingerprint(ctx context.Context, fingerprint string) (*model.Player, error) {
	return s.findByIndex(ctx, fingerprintIndexKey(fingerprint))
}

func (s *Storage) FindPlayerByNickname(ctx context.Context, nickname string) (*model.Player, error) {
	return s.findByIndex(ctx, nicknameIndexKey(nickname))
}

func (s *Storage) findByIndex(ctx context.Context, key string) (*model.Player, error) {
	no, err := s.indexedNo(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.FindPlayerByNo(ctx, no)
}

func (s *Storage) indexedNo(ctx context.Context, key string) (model.PlayerNo, error) {
	no, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, model.ErrPlayerNotFound
		}
		return 0, persistErr("read index", err)
	}
	return model.PlayerNo(no), nil
}

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	id, err := s.client.Incr(ctx, playerSeqKey()).Result()
	if err != nil {
		return persistErr("assign player number", err)
	}
	no := model.PlayerNo(id)

	// Claim the fingerprint first so concurrent logins with the same token converge
	claimed, err := s.client.SetNX(ctx, fingerprintIndexKey(player.Fingerprint), int64(no), 0).Result()
	if err != nil {
		return persistErr("claim fingerprint", err)
	}
	if !claimed {
		existing, err := s.FindPlayerByFingerprint(ctx, player.Fingerprint)
		if err != nil {
			return err
		}
		*player = *existing
		return nil
	}

	if player.Nickname != "" {
		ok, err := s.client.SetNX(ctx, nicknameIndexKey(player.Nickname), int64(no), 0).Result()
		if err != nil {
			return persistErr("claim nickname", err)
		}
		if !ok {
			s.client.Del(ctx, fingerprintIndexKey(player.Fingerprint))
			return model.ErrDuplicateNickname
		}
	}

	player.No = no
	data, err := json.Marshal(player)
	if err != nil {
		return persistErr("encode player", err)
	}
	if err := s.client.Set(ctx, playerKey(no), data, 0).Err(); err != nil {
		return persistErr("save player", err)
	}
	return nil
}

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	prev, err := s.FindPlayerByNo(ctx, player.No)
	if err != nil {
		return err
	}

	// claimedKey is set when this call took the nickname index and must give it back on failure
	var claimedKey string
	if player.Nickname != "" && player.Nickname != prev.Nickname {
		key := nicknameIndexKey(player.Nickname)
		claimed, err := s.client.SetNX(ctx, key, int64(player.No), 0).Result()
		if err != nil {
			return persistErr("claim nickname", err)
		}
		if claimed {
			claimedKey = key
		} else {
			owner, err := s.indexedNo(ctx, key)
			if err != nil && !errors.Is(err, model.ErrPlayerNotFound) {
				return err
			}
			if owner != player.No {
				return model.ErrDuplicateNickname
			}
		}
	}

	data, err := json.Marshal(player)
	if err != nil {
		s.releaseClaim(ctx, claimedKey)
		return persistErr("encode player", err)
	}

	// Use pipeline for atomic save + release of the old nickname
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, playerKey(player.No), data, 0)
	if prev.Nickname != "" && prev.Nickname != player.Nickname {
		pipe.Del(ctx, nicknameIndexKey(prev.Nickname))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.releaseClaim(ctx, claimedKey)
		return persistErr("save player", err)
	}
	return nil
}

// releaseClaim drops a nickname index entry taken by a save that did not complete
func (s *Storage) releaseClaim(ctx context.Context, key string) {
	if key == "" {
		return
	}
	// Best effort
	_ = s.client.Del(context.WithoutCancel(ctx), key).Err()
}

// Log operations

func (s *Storage) AppendLoginLog(ctx context.Context, entry model.LoginLog) error {
	return s.appendStream(ctx, loginLogKey(), map[string]any{
		"player_no":     int64(entry.PlayerNo),
		"connection_id": string(entry.ConnectionID),
		"server_id":     entry.ServerID,
		"reconnect":     strconv.FormatBool(entry.Reconnect),
		"at":            entry.At.UTC().Format(time.RFC3339Nano),
	})
}

func (s *Storage) AppendErrorLog(ctx context.Context, entry model.ErrorLog) error {
	return s.appendStream(ctx, errorLogKey(), map[string]any{
		"server_id": entry.ServerID,
		"player_no": int64(entry.PlayerNo),
		"command":   entry.Command,
		"message":   entry.Message,
		"stack":     entry.Stack,
		"at":        entry.At.UTC().Format(time.RFC3339Nano),
	})
}

func (s *Storage) appendStream(ctx context.Context, stream string, values map[string]any) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: s.cfg.LogStreamMaxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return persistErr("append "+stream, err)
	}
	return nil
}
