package model

import "errors"

// ResultCode is the protocol-level outcome carried by every acknowledgement
type ResultCode int

const (
	RetSuccess ResultCode = iota
	RetSystemError
	RetSystemFrequentlyLogin
	RetServerBusy
	RetInvalidRequest
	RetNoSession
	RetSessionOffsetMismatch
	RetPlayerNotFound
	RetDuplicateNickname
	RetChatRoomNotAvailable
	RetChatSameRoom
	RetChatFullRoom
	RetChatCannotEnterAnyRoom
	RetChatNotInRoom
)

var resultCodeNames = map[ResultCode]string{
	RetSuccess:                "Success",
	RetSystemError:            "SystemError",
	RetSystemFrequentlyLogin:  "SystemFrequentlyLogin",
	RetServerBusy:             "ServerBusy",
	RetInvalidRequest:         "InvalidRequest",
	RetNoSession:              "NoSession",
	RetSessionOffsetMismatch:  "SessionOffsetMismatch",
	RetPlayerNotFound:         "PlayerNotFound",
	RetDuplicateNickname:      "DuplicateNickname",
	RetChatRoomNotAvailable:   "ChatRoomNotAvailable",
	RetChatSameRoom:           "ChatSameRoom",
	RetChatFullRoom:           "ChatFullRoom",
	RetChatCannotEnterAnyRoom: "ChatCannotEnterAnyRoom",
	RetChatNotInRoom:          "ChatNotInRoom",
}

// String returns the code's name
func (c ResultCode) String() string {
	if name, ok := resultCodeNames[c]; ok {
		return name
	}
	return "Unknown"
}

// CodeOf maps an error to the result code reported to clients.
// Errors that are not protocol errors map to RetSystemError.
func CodeOf(err error) ResultCode {
	switch {
	case err == nil:
		return RetSuccess
	case errors.Is(err, ErrTooFrequentLogin):
		return RetSystemFrequentlyLogin
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrSchedulerClosed):
		return RetServerBusy
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidNickname),
		errors.Is(err, ErrInvalidMessage):
		return RetInvalidRequest
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrConnectionNotFound):
		return RetNoSession
	case errors.Is(err, ErrSessionOffsetMismatch):
		return RetSessionOffsetMismatch
	case errors.Is(err, ErrPlayerNotFound):
		return RetPlayerNotFound
	case errors.Is(err, ErrDuplicateNickname):
		return RetDuplicateNickname
	case errors.Is(err, ErrRoomNotAvailable):
		return RetChatRoomNotAvailable
	case errors.Is(err, ErrSameRoom):
		return RetChatSameRoom
	case errors.Is(err, ErrRoomFull):
		return RetChatFullRoom
	case errors.Is(err, ErrNoRoomAvailable):
		return RetChatCannotEnterAnyRoom
	case errors.Is(err, ErrNotInRoom):
		return RetChatNotInRoom
	default:
		return RetSystemError
	}
}

// IsProtocolError reports whether err is an expected, client-correctable error
func IsProtocolError(err error) bool {
	return err != nil && CodeOf(err) != RetSystemError
}
