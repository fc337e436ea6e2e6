package service

import "errors"

// 会话边界的业务错误。全部可恢复：出错连接收到一条 error 消息后保持连接，
// 房间和其他参与者不受影响。
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomFull          = errors.New("room is full (maximum 2 players)")
	ErrAlreadyInRoom     = errors.New("already in a room")
	ErrNotInRoom         = errors.New("not in a room")
	ErrCapacityExhausted = errors.New("room code space exhausted")
	ErrInvalidPayload    = errors.New("invalid message payload")
	ErrInternalServer    = errors.New("internal server error")
)
