package tasks

import "encoding/json"

// 任务类型常量
const (
	// TypeRoomSweep 周期性的房间清扫任务：回收空房间和闲置房间
	TypeRoomSweep = "room:sweep"
)

// RoomSweepPayload 定义房间清扫任务的数据结构。
// 目前清扫参数（闲置 TTL 等）由 Worker 配置决定，载荷留空以便后续扩展。
type RoomSweepPayload struct{}

// NewRoomSweepTask 创建房间清扫任务的载荷。
func NewRoomSweepTask() ([]byte, error) {
	return json.Marshal(RoomSweepPayload{})
}
