package service

// Delivery 描述一次待投递的出站消息：目标连接集合加上任意可序列化的载荷。
// Service 只负责计算“发什么、发给谁”，实际的入队投递由 Hub 完成
// （非阻塞，慢接收方不会拖住发送方的请求）。
type Delivery struct {
	ConnIDs []string
	Message interface{}
}

// deliverTo 构造发往一组连接的投递项。
func deliverTo(connIDs []string, msg interface{}) Delivery {
	return Delivery{ConnIDs: connIDs, Message: msg}
}
