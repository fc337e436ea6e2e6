package memory

import (
	"context"
	"sync"

	"github.com/catmaikl777/kitten-draw-backend/internal/domain"
	"github.com/catmaikl777/kitten-draw-backend/internal/repository"
)

// RoomStore 是 repository.RoomStore 的进程内实现。
// map 由读写锁保护；房间自身字段的并发保护在 domain.Room 内部。
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

// NewRoomStore 创建一个空的内存房间存储。
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*domain.Room),
	}
}

// Create 实现按房间码登记新房间。
func (s *RoomStore) Create(ctx context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[room.Code]; exists {
		return repository.ErrCodeTaken
	}
	s.rooms[room.Code] = room
	return nil
}

// FindByCode 实现根据房间码查找房间。
func (s *RoomStore) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return room, nil
}

// Remove 实现删除房间。删除后房间码立即可被 Create 复用。
func (s *RoomStore) Remove(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, code)
	return nil
}

// CodeExists 实现房间码占用检查。
func (s *RoomStore) CodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.rooms[code]
	return exists, nil
}

// Count 实现活跃房间计数。
func (s *RoomStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rooms), nil
}

// Codes 实现活跃房间码快照。
func (s *RoomStore) Codes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		codes = append(codes, code)
	}
	return codes, nil
}
