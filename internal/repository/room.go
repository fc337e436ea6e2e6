package repository

import (
	"context"

	"github.com/catmaikl777/kitten-draw-backend/internal/domain"
)

// RoomStore 定义了活跃房间的存储和检索操作。
// 房间只存在于进程内存中：跨重启持久化是明确的非目标。
type RoomStore interface {
	// Create 按 room.Code 登记一个新房间。
	// 房间码已被占用时返回 ErrCodeTaken。
	Create(ctx context.Context, room *domain.Room) error

	// FindByCode 根据房间码查找房间（调用方需先归一化为大写）。
	// 房间不存在时返回 ErrRoomNotFound。
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// Remove 删除房间并释放其房间码以供复用。
	// 房间不存在时为 no-op。
	Remove(ctx context.Context, code string) error

	// CodeExists 检查房间码是否已被某个活跃房间占用。
	CodeExists(ctx context.Context, code string) (bool, error)

	// Count 返回当前活跃房间数量。
	Count(ctx context.Context) (int, error)

	// Codes 返回所有活跃房间码的快照，供后台清扫任务遍历。
	Codes(ctx context.Context) ([]string, error)
}
