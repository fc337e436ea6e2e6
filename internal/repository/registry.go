package repository

// ConnRegistry 跟踪每个活跃连接当前归属的房间。
// Participant 对连接只持弱引用，连接生命周期由 Hub 管理；
// 这里只维护 connID -> roomCode 的归属关系。
type ConnRegistry interface {
	// Bind 将连接登记到房间。
	Bind(connID, roomCode string)

	// RoomOf 返回连接当前归属的房间码，未入座时 ok 为 false。
	RoomOf(connID string) (roomCode string, ok bool)

	// Unbind 解除连接的房间归属。未登记时为 no-op。
	Unbind(connID string)

	// Count 返回当前已入座的连接数量。
	Count() int
}
