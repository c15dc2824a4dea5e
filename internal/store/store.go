package store

import (
	"context"
	"sync"

	"signalflow/internal/dao"
	"signalflow/internal/model"
	"signalflow/pkg/logger"
)

// PositionStore 进程内权威仓位表。
// 每个key一把锁，协调器在持锁期间才允许改写仓位，不同key互不阻塞
type PositionStore struct {
	mu        sync.RWMutex
	positions map[model.PositionKey]*model.Position
	locks     map[model.PositionKey]*sync.Mutex

	d *dao.PositionDao // 可选的write-through持久化，nil则纯内存
}

func NewPositionStore(d *dao.PositionDao) *PositionStore {
	return &PositionStore{
		positions: make(map[model.PositionKey]*model.Position),
		locks:     make(map[model.PositionKey]*sync.Mutex),
		d:         d,
	}
}

// KeyLock 返回key对应的串行化锁。同一key的操作严格有序
func (s *PositionStore) KeyLock(key model.PositionKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Upsert 写入仓位快照。终态仓位保留在表里供查询，活跃判断看State
func (s *PositionStore) Upsert(p *model.Position) {
	cp := p.Clone()
	s.mu.Lock()
	s.positions[p.Key] = cp
	s.mu.Unlock()

	if s.d != nil {
		// 持久化失败不阻塞交易，流水可从信号日志重放
		if err := s.d.Save(context.Background(), cp); err != nil {
			logger.Errorf("position write-through failed key=%s: %v", p.Key, err)
		}
	}
}

// Get 返回仓位拷贝
func (s *PositionStore) Get(key model.PositionKey) (*model.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[key]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Live 返回非终态的仓位，没有则nil
func (s *PositionStore) Live(key model.PositionKey) *model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[key]
	if !ok || p.State.Terminal() {
		return nil
	}
	return p.Clone()
}

// ListOpen 所有非终态仓位的拷贝
func (s *PositionStore) ListOpen() []*model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Position
	for _, p := range s.positions {
		if !p.State.Terminal() {
			out = append(out, p.Clone())
		}
	}
	return out
}

// ListAll 全部仓位拷贝（含终态），对外展示用
func (s *PositionStore) ListAll() []*model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p.Clone())
	}
	return out
}

// OpenCount 当前持仓数，风控的max-positions用
func (s *PositionStore) OpenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.positions {
		if !p.State.Terminal() {
			n++
		}
	}
	return n
}
