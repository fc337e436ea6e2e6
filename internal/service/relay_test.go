package service_test // 测试包

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catmaikl777/kitten-draw-backend/internal/domain"
	"github.com/catmaikl777/kitten-draw-backend/internal/dto"
	"github.com/catmaikl777/kitten-draw-backend/internal/infra/memory"
	"github.com/catmaikl777/kitten-draw-backend/internal/service"
)

// pairedRoom 搭建一个已有 Alice (槽位1) 和 Bob (槽位2) 的房间。
func pairedRoom(t *testing.T) (*service.DrawRelay, *service.ChatRelay, *memory.RoomStore, string) {
	t.Helper()
	store := memory.NewRoomStore()
	registry := memory.NewConnRegistry()
	sm := service.NewSessionManager(store, registry)
	ctx := context.Background()

	created, err := sm.Create(ctx, "conn-alice", "Alice")
	require.NoError(t, err)
	_, _, err = sm.Join(ctx, "conn-bob", created.RoomID, "Bob")
	require.NoError(t, err)

	return service.NewDrawRelay(store, registry), service.NewChatRelay(store, registry), store, created.RoomID
}

func validBrushOp(snapshot string) domain.DrawOp {
	return domain.DrawOp{
		Tool:       domain.ToolBrush,
		Points:     [][]float64{{10, 20}, {12, 24}},
		Color:      "#ff0000",
		BrushSize:  5,
		CanvasData: snapshot,
	}
}

// --- 测试 SubmitDraw ---

func TestDrawRelay_SubmitDraw_RelaysToPeerOnly(t *testing.T) {
	// Arrange
	draw, _, store, code := pairedRoom(t)
	ctx := context.Background()

	// Act: Alice 画一笔
	deliveries, err := draw.SubmitDraw(ctx, "conn-alice", validBrushOp("data:image/png;base64,S1"))

	// Assert: 只有 Bob 收到转发，发送方不回显
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, []string{"conn-bob"}, deliveries[0].ConnIDs)
	bc, ok := deliveries[0].Message.(dto.DrawBroadcast)
	require.True(t, ok)
	assert.Equal(t, dto.KindDraw, bc.Type)
	assert.Equal(t, 1, bc.PlayerID, "转发应标记发送方的槽位号")
	assert.Equal(t, domain.ToolBrush, bc.Tool)
	assert.Equal(t, "data:image/png;base64,S1", bc.CanvasData)

	// 权威快照被替换
	room, err := store.FindByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,S1", room.CanvasData())
}

func TestDrawRelay_SubmitDraw_LastWriteWins(t *testing.T) {
	// Arrange
	draw, _, store, code := pairedRoom(t)
	ctx := context.Background()

	// Act: 双方先后提交，后到者的快照覆盖先到者
	_, err := draw.SubmitDraw(ctx, "conn-alice", validBrushOp("data:image/png;base64,FROM_ALICE"))
	require.NoError(t, err)
	_, err = draw.SubmitDraw(ctx, "conn-bob", validBrushOp("data:image/png;base64,FROM_BOB"))
	require.NoError(t, err)

	// Assert
	room, err := store.FindByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,FROM_BOB", room.CanvasData(), "权威快照应为最后一次提交")
}

func TestDrawRelay_SubmitDraw_UndoSkipsStrokeValidation(t *testing.T) {
	// Arrange
	draw, _, store, code := pairedRoom(t)
	ctx := context.Background()

	// Act: undo 没有 Tool/Points，只携带撤销后的快照
	deliveries, err := draw.SubmitDraw(ctx, "conn-bob", domain.DrawOp{
		IsUndo:     true,
		CanvasData: "data:image/png;base64,AFTER_UNDO",
	})

	// Assert: 正常转发且快照被替换（对端可能因此丢失自己后画的内容）
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	bc := deliveries[0].Message.(dto.DrawBroadcast)
	assert.True(t, bc.IsUndo)
	room, err := store.FindByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AFTER_UNDO", room.CanvasData())
}

func TestDrawRelay_SubmitDraw_RejectsMalformedOp(t *testing.T) {
	// Arrange
	draw, _, store, code := pairedRoom(t)
	ctx := context.Background()
	_, err := draw.SubmitDraw(ctx, "conn-alice", validBrushOp("data:image/png;base64,GOOD"))
	require.NoError(t, err)

	cases := []struct {
		name string
		op   domain.DrawOp
	}{
		{"unknown tool", domain.DrawOp{Tool: "spray", Points: [][]float64{{1, 2}, {3, 4}}, CanvasData: "x"}},
		{"wrong point count", domain.DrawOp{Tool: domain.ToolBrush, Points: [][]float64{{1, 2}}, CanvasData: "x"}},
		{"non-pair point", domain.DrawOp{Tool: domain.ToolLine, Points: [][]float64{{1, 2}, {3}}, CanvasData: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			deliveries, err := draw.SubmitDraw(ctx, "conn-alice", tc.op)

			// Assert: 拒绝且不产生任何转发
			assert.ErrorIs(t, err, service.ErrInvalidPayload)
			assert.Empty(t, deliveries)
		})
	}

	// 畸形操作不应污染权威快照
	room, err := store.FindByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,GOOD", room.CanvasData())
}

func TestDrawRelay_SubmitDraw_NotInRoom(t *testing.T) {
	// Arrange
	draw, _, _, _ := pairedRoom(t)

	// Act
	deliveries, err := draw.SubmitDraw(context.Background(), "conn-ghost", validBrushOp("x"))

	// Assert
	assert.ErrorIs(t, err, service.ErrNotInRoom)
	assert.Empty(t, deliveries)
}

func TestDrawRelay_SubmitDraw_AloneInRoom_NoDeliveries(t *testing.T) {
	// Arrange: Alice 独自在房间
	store := memory.NewRoomStore()
	registry := memory.NewConnRegistry()
	sm := service.NewSessionManager(store, registry)
	draw := service.NewDrawRelay(store, registry)
	ctx := context.Background()
	created, err := sm.Create(ctx, "conn-alice", "Alice")
	require.NoError(t, err)

	// Act
	deliveries, err := draw.SubmitDraw(ctx, "conn-alice", validBrushOp("data:image/png;base64,SOLO"))

	// Assert: 快照照常更新，但没有转发对象
	require.NoError(t, err)
	assert.Empty(t, deliveries)
	room, err := store.FindByCode(ctx, created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,SOLO", room.CanvasData())
}

// --- 测试 SubmitClear ---

func TestDrawRelay_SubmitClear(t *testing.T) {
	// Arrange: 画布上已有内容
	draw, _, store, code := pairedRoom(t)
	ctx := context.Background()
	_, err := draw.SubmitDraw(ctx, "conn-alice", validBrushOp("data:image/png;base64,S1"))
	require.NoError(t, err)

	// Act: Bob 清空
	deliveries, err := draw.SubmitClear(ctx, "conn-bob")

	// Assert: 快照重置为空，Alice 收到 clear
	require.NoError(t, err)
	room, findErr := store.FindByCode(ctx, code)
	require.NoError(t, findErr)
	assert.Empty(t, room.CanvasData())
	require.Len(t, deliveries, 1)
	assert.Equal(t, []string{"conn-alice"}, deliveries[0].ConnIDs)
	cb, ok := deliveries[0].Message.(dto.ClearBroadcast)
	require.True(t, ok)
	assert.Equal(t, dto.KindClear, cb.Type)
	assert.Equal(t, 2, cb.PlayerID)
}

func TestDrawRelay_SubmitClear_NotInRoom(t *testing.T) {
	// Arrange
	draw, _, _, _ := pairedRoom(t)

	// Act
	_, err := draw.SubmitClear(context.Background(), "conn-ghost")

	// Assert
	assert.ErrorIs(t, err, service.ErrNotInRoom)
}

// --- 测试 SubmitChat ---

func TestChatRelay_SubmitChat_RelaysToPeerOnly(t *testing.T) {
	// Arrange
	_, chat, _, _ := pairedRoom(t)

	// Act
	deliveries, err := chat.SubmitChat(context.Background(), "conn-alice", "hello there")

	// Assert: 身份取自 roster，只发给 Bob
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, []string{"conn-bob"}, deliveries[0].ConnIDs)
	cb, ok := deliveries[0].Message.(dto.ChatBroadcast)
	require.True(t, ok)
	assert.Equal(t, dto.KindChatMessage, cb.Type)
	assert.Equal(t, 1, cb.PlayerID)
	assert.Equal(t, "Alice", cb.Username)
	assert.Equal(t, "hello there", cb.Message)
}

func TestChatRelay_SubmitChat_BlankMessageDropped(t *testing.T) {
	// Arrange
	_, chat, _, _ := pairedRoom(t)

	// Act
	deliveries, err := chat.SubmitChat(context.Background(), "conn-alice", "   \t  ")

	// Assert: 空白消息静默丢弃，不算错误
	assert.NoError(t, err)
	assert.Empty(t, deliveries)
}

func TestChatRelay_SubmitChat_NotInRoom(t *testing.T) {
	// Arrange
	_, chat, _, _ := pairedRoom(t)

	// Act
	_, err := chat.SubmitChat(context.Background(), "conn-ghost", "hi")

	// Assert
	assert.ErrorIs(t, err, service.ErrNotInRoom)
}
