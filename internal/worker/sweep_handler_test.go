package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catmaikl777/kitten-draw-backend/internal/domain"
	"github.com/catmaikl777/kitten-draw-backend/internal/infra/memory"
	"github.com/catmaikl777/kitten-draw-backend/internal/tasks"
	"github.com/catmaikl777/kitten-draw-backend/internal/worker"
)

// fakeKicker 记录被踢出的连接。
type fakeKicker struct {
	kicked []string
}

func (f *fakeKicker) Kick(connID, reason string) {
	f.kicked = append(f.kicked, connID)
}

func sweepTask(t *testing.T) *asynq.Task {
	t.Helper()
	payload, err := tasks.NewRoomSweepTask()
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeRoomSweep, payload)
}

func TestRoomSweepHandler_FreshEmptyRoomSurvivesGrace(t *testing.T) {
	// Arrange: REST 刚分配、尚未被加入的空房间
	store := memory.NewRoomStore()
	registry := memory.NewConnRegistry()
	kicker := &fakeKicker{}
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.NewRoom("FRESH1")))

	handler := worker.NewRoomSweepHandler(store, registry, kicker, 24*time.Hour)

	// Act
	err := handler.ProcessTask(ctx, sweepTask(t))

	// Assert: 宽限期内不回收，等待第一个加入者
	require.NoError(t, err)
	exists, existsErr := store.CodeExists(ctx, "FRESH1")
	require.NoError(t, existsErr)
	assert.True(t, exists, "宽限期内的空房间不应被回收")
	assert.Empty(t, kicker.kicked)
}

func TestRoomSweepHandler_IdleRoomKicksAndReclaims(t *testing.T) {
	// Arrange: 有两名参与者但长时间无活动的房间
	store := memory.NewRoomStore()
	registry := memory.NewConnRegistry()
	kicker := &fakeKicker{}
	ctx := context.Background()

	room := domain.NewRoom("IDLE01")
	_, ok := room.Seat("conn-alice", "Alice")
	require.True(t, ok)
	_, ok = room.Seat("conn-bob", "Bob")
	require.True(t, ok)
	require.NoError(t, store.Create(ctx, room))
	registry.Bind("conn-alice", "IDLE01")
	registry.Bind("conn-bob", "IDLE01")

	// 用极小的 TTL 模拟闲置超时
	handler := worker.NewRoomSweepHandler(store, registry, kicker, time.Nanosecond)
	time.Sleep(2 * time.Millisecond)

	// Act
	err := handler.ProcessTask(ctx, sweepTask(t))

	// Assert: 两个连接都被踢出并解除绑定，房间被回收
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"conn-alice", "conn-bob"}, kicker.kicked)
	_, seated := registry.RoomOf("conn-alice")
	assert.False(t, seated)
	exists, existsErr := store.CodeExists(ctx, "IDLE01")
	require.NoError(t, existsErr)
	assert.False(t, exists, "闲置超时的房间应被回收")
}

func TestRoomSweepHandler_ActiveRoomUntouched(t *testing.T) {
	// Arrange: 有活动的房间（闲置 TTL 很大）
	store := memory.NewRoomStore()
	registry := memory.NewConnRegistry()
	kicker := &fakeKicker{}
	ctx := context.Background()

	room := domain.NewRoom("BUSY01")
	_, ok := room.Seat("conn-alice", "Alice")
	require.True(t, ok)
	require.NoError(t, store.Create(ctx, room))
	registry.Bind("conn-alice", "BUSY01")

	handler := worker.NewRoomSweepHandler(store, registry, kicker, 24*time.Hour)

	// Act
	err := handler.ProcessTask(ctx, sweepTask(t))

	// Assert
	require.NoError(t, err)
	exists, existsErr := store.CodeExists(ctx, "BUSY01")
	require.NoError(t, existsErr)
	assert.True(t, exists)
	assert.Empty(t, kicker.kicked)
	_, seated := registry.RoomOf("conn-alice")
	assert.True(t, seated)
}
