package memory

import (
	"context"
	"sync"
	"time"

	"creative-canvas-api/internal/domain/entity"
)

type nodeKey struct {
	boardID string
	blockID string
}

// CanvasStore 内存版参考块与创意节点存储
type CanvasStore struct {
	mu      sync.RWMutex
	blocks  map[nodeKey][]entity.ConnectedBlock
	targets map[string]*entity.CreativeTarget
}

func NewCanvasStore() *CanvasStore {
	return &CanvasStore{
		blocks:  make(map[nodeKey][]entity.ConnectedBlock),
		targets: make(map[string]*entity.CreativeTarget),
	}
}

// Connect 设置节点的参考块（按连接顺序）
func (s *CanvasStore) Connect(boardID, blockID string, blocks ...entity.ConnectedBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[nodeKey{boardID, blockID}] = append([]entity.ConnectedBlock(nil), blocks...)
}

func (s *CanvasStore) ListConnected(ctx context.Context, boardID, blockID string) ([]entity.ConnectedBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.ConnectedBlock(nil), s.blocks[nodeKey{boardID, blockID}]...), nil
}

// PutTarget 注册下游创意节点
func (s *CanvasStore) PutTarget(target *entity.CreativeTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *target
	cp.Variants = cloneVariants(target.Variants)
	s.targets[target.ID] = &cp
}

func (s *CanvasStore) GetTarget(ctx context.Context, targetID string) (*entity.CreativeTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.targets[targetID]
	if !ok {
		return nil, nil
	}
	cp := *t
	cp.Variants = cloneVariants(t.Variants)
	return &cp, nil
}

func (s *CanvasStore) ReplaceVariants(ctx context.Context, targetID string, variants []entity.CreativeVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.targets[targetID]
	if !ok {
		t = &entity.CreativeTarget{ID: targetID}
		s.targets[targetID] = t
	}
	t.Variants = cloneVariants(variants)
	t.UpdatedAt = time.Now()
	return nil
}

func cloneVariants(in []entity.CreativeVariant) []entity.CreativeVariant {
	out := make([]entity.CreativeVariant, len(in))
	for i, v := range in {
		v.Images = append([]string{}, v.Images...)
		out[i] = v
	}
	return out
}
