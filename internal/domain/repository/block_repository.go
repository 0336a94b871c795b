package repository

import (
	"context"

	"creative-canvas-api/internal/domain/entity"
)

// BlockRepository 画布参考块读取
type BlockRepository interface {
	// ListConnected 返回连接到指定节点的参考块，按连接顺序
	ListConnected(ctx context.Context, boardID, blockID string) ([]entity.ConnectedBlock, error)
}

// CreativeTargetRepository 下游创意节点的变体列表
type CreativeTargetRepository interface {
	// GetTarget 含完整变体列表，不存在时返回 nil
	GetTarget(ctx context.Context, targetID string) (*entity.CreativeTarget, error)
	// ReplaceVariants 整体覆盖变体列表
	ReplaceVariants(ctx context.Context, targetID string, variants []entity.CreativeVariant) error
}
