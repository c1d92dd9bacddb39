// Package protocol defines the command and broadcast payloads exchanged with chat clients.
package protocol

import (
	"time"

	"github.com/mcoot/chathub/internal/model"
)

// Request methods
const (
	MethodLogin         = "ReqLogin"
	MethodReconnect     = "ReqReconnect"
	MethodSetNickname   = "ReqSetNickname"
	MethodSetPlayerIcon = "ReqSetPlayerIcon"
	MethodEnterChatRoom = "ReqEnterChatRoom"
	MethodSendChatRoom  = "ReqSendChatRoom"
	MethodLeaveChatRoom = "ReqLeaveChatRoom"
)

// Broadcast methods
const (
	MethodRecvChatRoomNoti    = "BCRecvChatRoomNoti"
	MethodRecvChatRoomMessage = "BCRecvChatRoomMessage"
)

var ackMethods = map[string]string{
	MethodLogin:         "AckLogin",
	MethodReconnect:     "AckReconnect",
	MethodSetNickname:   "AckSetNickname",
	MethodSetPlayerIcon: "AckSetPlayerIcon",
	MethodEnterChatRoom: "AckEnterChatRoom",
	MethodSendChatRoom:  "AckSendChatRoom",
	MethodLeaveChatRoom: "AckLeaveChatRoom",
}

// AckMethod returns the acknowledgement method for a request method
func AckMethod(method string) (string, bool) {
	ack, ok := ackMethods[method]
	return ack, ok
}

// Result is embedded in every acknowledgement
type Result struct {
	RetCode    model.ResultCode `json:"retCode"`
	RetMessage string           `json:"retMessage,omitempty"`
}

// ResultOf builds the Result for a protocol error. A nil error is success.
func ResultOf(err error) Result {
	if err == nil {
		return Result{RetCode: model.RetSuccess}
	}
	return Result{RetCode: model.CodeOf(err), RetMessage: err.Error()}
}

// OK reports whether the result is a success
func (r Result) OK() bool {
	return r.RetCode == model.RetSuccess
}

// PlayerInfo describes a player to clients
type PlayerInfo struct {
	PlayerNo model.PlayerNo `json:"playerNo"`
	Name     string         `json:"name"`
	Icon     uint32         `json:"icon"`
}

// ChatInfo is one room history entry or notification
type ChatInfo struct {
	Type      string         `json:"type"`
	MsgID     int64          `json:"msgId,omitempty"`
	PlayerNo  model.PlayerNo `json:"playerNo"`
	Name      string         `json:"name"`
	Icon      uint32         `json:"icon"`
	Msg       string         `json:"msg,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ChatInfoFromMessage converts a room message
func ChatInfoFromMessage(m model.Message) ChatInfo {
	return ChatInfo{
		Type:      m.Type.String(),
		MsgID:     m.ID,
		PlayerNo:  m.PlayerNo,
		Name:      m.Nickname,
		Icon:      m.IconID,
		Msg:       m.Text,
		Timestamp: m.Timestamp,
	}
}

// ChatInfosFromMessages converts a slice of room messages, never returning nil
func ChatInfosFromMessages(msgs []model.Message) []ChatInfo {
	infos := make([]ChatInfo, 0, len(msgs))
	for _, m := range msgs {
		infos = append(infos, ChatInfoFromMessage(m))
	}
	return infos
}

type ReqLogin struct {
	FpID string `json:"fpId"`
}

type AckLogin struct {
	Result
	PlayerNo      model.PlayerNo `json:"playerNo"`
	Name          string         `json:"name"`
	Icon          uint32         `json:"icon"`
	SessionOffset int64          `json:"sessionOffset"`
}

type ReqReconnect struct {
	PlayerNo      model.PlayerNo `json:"playerNo"`
	SessionOffset int64          `json:"sessionOffset"`
}

type AckReconnect struct {
	Result
	PlayerInfo    PlayerInfo `json:"playerInfo"`
	SessionOffset int64      `json:"sessionOffset"`
}

type ReqSetNickname struct {
	Name string `json:"name"`
}

type AckSetNickname struct {
	Result
	Name string `json:"name"`
}

type ReqSetPlayerIcon struct {
	IconID uint32 `json:"iconId"`
}

type AckSetPlayerIcon struct {
	Result
	Tid uint32 `json:"tid"`
}

// ReqEnterChatRoom asks to enter RoomID, or any room with space when RoomID is 0
type ReqEnterChatRoom struct {
	RoomID model.RoomID `json:"roomId"`
}

type AckEnterChatRoom struct {
	Result
	RoomID model.RoomID `json:"roomId"`
	Infos  []ChatInfo   `json:"infos"`
}

type ReqSendChatRoom struct {
	Msg string `json:"msg"`
}

type AckSendChatRoom struct {
	Result
}

type ReqLeaveChatRoom struct{}

type AckLeaveChatRoom struct {
	Result
	RoomID model.RoomID `json:"roomId"`
}

// BCRecvChatRoomNoti is sent to a room's other members when someone enters or leaves
type BCRecvChatRoomNoti struct {
	Infos []ChatInfo `json:"infos"`
}

// BCRecvChatRoomMessage is sent to every member of a room, sender included
type BCRecvChatRoomMessage struct {
	Infos []ChatInfo `json:"infos"`
}
