package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catmaikl777/kitten-draw-backend/internal/domain"
	"github.com/catmaikl777/kitten-draw-backend/internal/infra/memory"
	"github.com/catmaikl777/kitten-draw-backend/internal/repository"
)

func TestRoomStore_CreateAndFind(t *testing.T) {
	// Arrange
	store := memory.NewRoomStore()
	ctx := context.Background()
	room := domain.NewRoom("AB12CD")

	// Act & Assert
	require.NoError(t, store.Create(ctx, room))
	found, err := store.FindByCode(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Same(t, room, found, "存储应返回同一个房间实例")

	// 重复登记同一房间码
	err = store.Create(ctx, domain.NewRoom("AB12CD"))
	assert.ErrorIs(t, err, repository.ErrCodeTaken)
}

func TestRoomStore_FindMissing(t *testing.T) {
	store := memory.NewRoomStore()
	_, err := store.FindByCode(context.Background(), "NOPE11")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestRoomStore_RemoveFreesCode(t *testing.T) {
	// Arrange
	store := memory.NewRoomStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.NewRoom("AB12CD")))

	// Act
	require.NoError(t, store.Remove(ctx, "AB12CD"))

	// Assert: 房间码立即可复用，重复删除是 no-op
	assert.NoError(t, store.Remove(ctx, "AB12CD"))
	assert.NoError(t, store.Create(ctx, domain.NewRoom("AB12CD")))
}

func TestRoomStore_CountAndCodes(t *testing.T) {
	// Arrange
	store := memory.NewRoomStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.NewRoom("ROOM01")))
	require.NoError(t, store.Create(ctx, domain.NewRoom("ROOM02")))

	// Act
	count, err := store.Count(ctx)
	require.NoError(t, err)
	codes, err := store.Codes(ctx)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 2, count)
	assert.ElementsMatch(t, []string{"ROOM01", "ROOM02"}, codes)
}

func TestRoomStore_ConcurrentAccess(t *testing.T) {
	// Arrange: 多个 goroutine 同时对各自的房间码做增删查（配合 -race 检测）
	store := memory.NewRoomStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			code := fmt.Sprintf("ROOM%02d", n)
			for j := 0; j < 200; j++ {
				_ = store.Create(ctx, domain.NewRoom(code))
				if room, err := store.FindByCode(ctx, code); err == nil {
					room.SetCanvasData("data:image/png;base64,S")
					_ = room.CanvasData()
				}
				_, _ = store.CodeExists(ctx, code)
				_, _ = store.Codes(ctx)
				_, _ = store.Count(ctx)
				_ = store.Remove(ctx, code)
			}
		}(i)
	}
	wg.Wait()

	// Assert: 每个 goroutine 都以 Remove 结束，存储应为空
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestConnRegistry_ConcurrentAccess(t *testing.T) {
	// Arrange
	registry := memory.NewConnRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := fmt.Sprintf("conn-%d", n)
			for j := 0; j < 200; j++ {
				registry.Bind(connID, "ROOM01")
				_, _ = registry.RoomOf(connID)
				_ = registry.Count()
				registry.Unbind(connID)
			}
		}(i)
	}
	wg.Wait()

	// Assert
	assert.Zero(t, registry.Count())
}

func TestConnRegistry_BindLifecycle(t *testing.T) {
	// Arrange
	registry := memory.NewConnRegistry()

	// Act & Assert
	_, seated := registry.RoomOf("conn-1")
	assert.False(t, seated)

	registry.Bind("conn-1", "AB12CD")
	code, seated := registry.RoomOf("conn-1")
	assert.True(t, seated)
	assert.Equal(t, "AB12CD", code)
	assert.Equal(t, 1, registry.Count())

	registry.Unbind("conn-1")
	_, seated = registry.RoomOf("conn-1")
	assert.False(t, seated)
	assert.Equal(t, 0, registry.Count())

	// 重复解绑是 no-op
	registry.Unbind("conn-1")
	assert.Equal(t, 0, registry.Count())
}
