package redis

import (
	"fmt"

	"github.com/mcoot/chathub/internal/model"
)

// Key prefix for all hub data
const keyPrefix = "chathub"

// playerKey returns the Redis key for a Player
func playerKey(no model.PlayerNo) string {
	return fmt.Sprintf("%s:player:%d", keyPrefix, no)
}

// playerSeqKey returns the counter used to assign player numbers
func playerSeqKey() string {
	return fmt.Sprintf("%s:seq:player_no", keyPrefix)
}

// fingerprintIndexKey returns the Redis key for the fingerprint -> player_no index
func fingerprintIndexKey(fingerprint string) string {
	return fmt.Sprintf("%s:idx:fingerprint:%s", keyPrefix, fingerprint)
}

// nicknameIndexKey returns the Redis key for the nickname -> player_no index
func nicknameIndexKey(nickname string) string {
	return fmt.Sprintf("%s:idx:nickname:%s", keyPrefix, nickname)
}

// loginLogKey returns the stream holding login records
func loginLogKey() string {
	return fmt.Sprintf("%s:log:login", keyPrefix)
}

// errorLogKey returns the stream holding command fault records
func errorLogKey() string {
	return fmt.Sprintf("%s:log:error", keyPrefix)
}
