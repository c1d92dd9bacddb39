package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want ResultCode
	}{
		{nil, RetSuccess},
		{ErrTooFrequentLogin, RetSystemFrequentlyLogin},
		{ErrQueueFull, RetServerBusy},
		{ErrSchedulerClosed, RetServerBusy},
		{ErrInvalidRequest, RetInvalidRequest},
		{ErrInvalidNickname, RetInvalidRequest},
		{ErrInvalidMessage, RetInvalidRequest},
		{ErrNoSession, RetNoSession},
		{ErrConnectionNotFound, RetNoSession},
		{ErrSessionOffsetMismatch, RetSessionOffsetMismatch},
		{ErrPlayerNotFound, RetPlayerNotFound},
		{ErrDuplicateNickname, RetDuplicateNickname},
		{ErrRoomNotAvailable, RetChatRoomNotAvailable},
		{ErrSameRoom, RetChatSameRoom},
		{ErrRoomFull, RetChatFullRoom},
		{ErrNoRoomAvailable, RetChatCannotEnterAnyRoom},
		{ErrNotInRoom, RetChatNotInRoom},
		{ErrPersistence, RetSystemError},
		{errors.New("boom"), RetSystemError},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("enter room 3: %w", ErrRoomFull)
	assert.Equal(t, RetChatFullRoom, CodeOf(err))
	assert.True(t, IsProtocolError(err))
}

func TestIsProtocolError(t *testing.T) {
	assert.False(t, IsProtocolError(nil))
	assert.False(t, IsProtocolError(fmt.Errorf("%w: timeout", ErrPersistence)))
	assert.True(t, IsProtocolError(ErrNoSession))
}

func TestResultCodeString(t *testing.T) {
	assert.Equal(t, "Success", RetSuccess.String())
	assert.Equal(t, "ChatCannotEnterAnyRoom", RetChatCannotEnterAnyRoom.String())
	assert.Equal(t, "Unknown", ResultCode(99).String())
}

func TestRoomGroupName(t *testing.T) {
	assert.Equal(t, "ChannelChat:7", RoomID(7).GroupName())
}

func TestConnectionRecordExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	pending := ConnectionRecord{ID: "c1", AuthDeadline: now.Add(5 * time.Second)}
	authed := ConnectionRecord{ID: "c2", PlayerNo: 4}

	assert.False(t, pending.Expired(now))
	assert.True(t, pending.Expired(now.Add(6*time.Second)))
	assert.False(t, authed.Expired(now.Add(time.Hour)))
	assert.True(t, authed.Authenticated())
	assert.False(t, pending.Authenticated())
}
