package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/protocol"
)

// ErrUnknownMethod is returned by Handle for methods outside the command set
var ErrUnknownMethod = errors.New("unknown method")

// Handle decodes payload for method and runs the matching command for connID.
// A payload that does not decode yields an InvalidRequest acknowledgement.
func (s *Service) Handle(ctx context.Context, connID model.ConnectionID, method string, payload json.RawMessage) (any, error) {
	switch method {
	case protocol.MethodLogin:
		req, err := protocol.DecodePayload[protocol.ReqLogin](payload)
		if err != nil {
			return protocol.AckLogin{Result: invalid(err)}, nil
		}
		return s.Login(ctx, connID, req)

	case protocol.MethodReconnect:
		req, err := protocol.DecodePayload[protocol.ReqReconnect](payload)
		if err != nil {
			return protocol.AckReconnect{Result: invalid(err)}, nil
		}
		return s.Reconnect(ctx, connID, req)

	case protocol.MethodSetNickname:
		req, err := protocol.DecodePayload[protocol.ReqSetNickname](payload)
		if err != nil {
			return protocol.AckSetNickname{Result: invalid(err)}, nil
		}
		return s.SetNickname(ctx, connID, req)

	case protocol.MethodSetPlayerIcon:
		req, err := protocol.DecodePayload[protocol.ReqSetPlayerIcon](payload)
		if err != nil {
			return protocol.AckSetPlayerIcon{Result: invalid(err)}, nil
		}
		return s.SetPlayerIcon(ctx, connID, req)

	case protocol.MethodEnterChatRoom:
		req, err := protocol.DecodePayload[protocol.ReqEnterChatRoom](payload)
		if err != nil {
			return protocol.AckEnterChatRoom{Result: invalid(err), Infos: []protocol.ChatInfo{}}, nil
		}
		return s.EnterChatRoom(ctx, connID, req)

	case protocol.MethodSendChatRoom:
		req, err := protocol.DecodePayload[protocol.ReqSendChatRoom](payload)
		if err != nil {
			return protocol.AckSendChatRoom{Result: invalid(err)}, nil
		}
		return s.SendChatRoom(ctx, connID, req)

	case protocol.MethodLeaveChatRoom:
		return s.LeaveChatRoom(ctx, connID, protocol.ReqLeaveChatRoom{})

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

func invalid(err error) protocol.Result {
	return protocol.ResultOf(fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
}
