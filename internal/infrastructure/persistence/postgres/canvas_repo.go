package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"creative-canvas-api/internal/domain/entity"
	"creative-canvas-api/pkg/logger"
)

// BlockRepository 参考块读取
type BlockRepository struct {
	client *Client
}

func NewBlockRepository(client *Client) *BlockRepository {
	return &BlockRepository{client: client}
}

// ListConnected 按连线顺序返回连接到 blockID 的参考块，无法识别的块类型跳过
func (r *BlockRepository) ListConnected(ctx context.Context, boardID, blockID string) ([]entity.ConnectedBlock, error) {
	ctx, span := tracer.Start(ctx, "postgres.BlockRepository.ListConnected")
	defer span.End()

	var rows []blockModel
	err := getDB(ctx, r.client.db).
		Table("canvas_blocks AS b").
		Select("b.*").
		Joins("JOIN canvas_connections AS c ON c.source_id = b.id AND c.board_id = b.board_id").
		Where("c.board_id = ? AND c.target_id = ?", boardID, blockID).
		Order("c.position ASC").
		Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list connected blocks: %w", err)
	}

	out := make([]entity.ConnectedBlock, 0, len(rows))
	for i := range rows {
		b, err := rows[i].toEntity()
		if err != nil {
			logger.Warn(ctx, "skip unsupported block", "block", rows[i].ID, "error", err.Error())
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// CreativeTargetRepository 下游创意节点存储
type CreativeTargetRepository struct {
	client *Client
}

func NewCreativeTargetRepository(client *Client) *CreativeTargetRepository {
	return &CreativeTargetRepository{client: client}
}

func (r *CreativeTargetRepository) GetTarget(ctx context.Context, targetID string) (*entity.CreativeTarget, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreativeTargetRepository.GetTarget")
	defer span.End()

	db := getDB(ctx, r.client.db)
	// 事务内读取时锁定行，配合 ReplaceVariants 完成读改写
	if inTx(ctx) {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m creativeTargetModel
	if err := db.First(&m, "id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get creative target: %w", err)
	}
	return m.toEntity(), nil
}

// ReplaceVariants 覆盖整个列表；目标不存在时创建
func (r *CreativeTargetRepository) ReplaceVariants(ctx context.Context, targetID string, variants []entity.CreativeVariant) error {
	ctx, span := tracer.Start(ctx, "postgres.CreativeTargetRepository.ReplaceVariants")
	defer span.End()

	row := &creativeTargetModel{
		ID:        targetID,
		Variants:  variantList(variants),
		UpdatedAt: time.Now(),
	}
	err := getDB(ctx, r.client.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"variants", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to replace creative variants: %w", err)
	}
	return nil
}
