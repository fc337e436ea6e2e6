package repository

import "errors"

// 通用的存储层错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrCodeTaken 表示房间码已被占用（创建时碰撞）
	ErrCodeTaken = errors.New("repository: room code already taken")
)

// 特定资源的错误
var (
	ErrRoomNotFound = ErrNotFound
)
