package creative

import (
	"context"

	"github.com/google/uuid"

	"creative-canvas-api/internal/application/chat/sections"
	"creative-canvas-api/internal/domain/entity"
	"creative-canvas-api/internal/domain/repository"
	apperrors "creative-canvas-api/pkg/errors"
	"creative-canvas-api/pkg/logger"
	"creative-canvas-api/pkg/metrics"
)

// Source 变体来源，用于指标
type Source string

const (
	SourceVariant   Source = "variant"
	SourceSection   Source = "section"
	SourceItem      Source = "item"
	SourceMessage   Source = "message"
	SourceCreatives Source = "creatives"
)

// Pusher 以整表读改写的方式向下游创意节点追加变体，变体只会追加
// 配置了 tx 时读写在同一事务内完成并锁定目标行；未配置时并发推送后写者覆盖
type Pusher struct {
	targets repository.CreativeTargetRepository
	tx      repository.Transactor
}

// NewPusher tx 可为空
func NewPusher(targets repository.CreativeTargetRepository, tx repository.Transactor) *Pusher {
	return &Pusher{targets: targets, tx: tx}
}

// Push 追加单个变体
func (p *Pusher) Push(ctx context.Context, targetID string, variant entity.CreativeVariant) (*entity.CreativeTarget, error) {
	return p.push(ctx, targetID, SourceVariant, []entity.CreativeVariant{variant})
}

// PushBatch 一次追加多个变体，整体写回
func (p *Pusher) PushBatch(ctx context.Context, targetID string, variants []entity.CreativeVariant) (*entity.CreativeTarget, error) {
	return p.push(ctx, targetID, SourceVariant, variants)
}

func (p *Pusher) PushSection(ctx context.Context, targetID string, sec sections.Section) (*entity.CreativeTarget, error) {
	return p.push(ctx, targetID, SourceSection, []entity.CreativeVariant{FromSection(sec)})
}

func (p *Pusher) PushItem(ctx context.Context, targetID string, item sections.Item) (*entity.CreativeTarget, error) {
	return p.push(ctx, targetID, SourceItem, []entity.CreativeVariant{FromItem(item)})
}

func (p *Pusher) PushMessage(ctx context.Context, targetID string, msg *entity.ChatMessage) (*entity.CreativeTarget, error) {
	if msg == nil {
		return nil, apperrors.ErrMessageNotFound
	}
	return p.push(ctx, targetID, SourceMessage, []entity.CreativeVariant{FromMessage(msg)})
}

func (p *Pusher) PushCreatives(ctx context.Context, targetID string, creatives []entity.AdCreative) (*entity.CreativeTarget, error) {
	return p.push(ctx, targetID, SourceCreatives, FromCreatives(creatives))
}

func (p *Pusher) push(ctx context.Context, targetID string, source Source, variants []entity.CreativeVariant) (*entity.CreativeTarget, error) {
	if targetID == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("target id is required")
	}
	if len(variants) == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("nothing to push")
	}

	var (
		target *entity.CreativeTarget
		merged []entity.CreativeVariant
	)
	err := p.withTx(ctx, func(ctx context.Context) error {
		var err error
		target, err = p.targets.GetTarget(ctx, targetID)
		if err != nil {
			logger.Error(ctx, "failed to load creative target", err, "target_id", targetID)
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load creative target")
		}
		if target == nil {
			return apperrors.ErrTargetNotFound
		}

		merged = make([]entity.CreativeVariant, 0, len(target.Variants)+len(variants))
		merged = append(merged, target.Variants...)
		for _, v := range variants {
			merged = append(merged, normalize(v))
		}

		if err := p.targets.ReplaceVariants(ctx, targetID, merged); err != nil {
			logger.Error(ctx, "failed to write creative variants", err, "target_id", targetID)
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to push creative")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CreativeVariantsPushed.WithLabelValues(string(source)).Add(float64(len(variants)))
	logger.Info(ctx, "creative variants pushed",
		"target_id", targetID,
		"source", string(source),
		"added", len(variants),
		"total", len(merged),
	)

	target.Variants = merged
	return target, nil
}

func (p *Pusher) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.tx == nil {
		return fn(ctx)
	}
	return p.tx.WithTransaction(ctx, fn)
}

func normalize(v entity.CreativeVariant) entity.CreativeVariant {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Channel == "" {
		v.Channel = DefaultVariantChannel
	}
	if v.Images == nil {
		v.Images = []string{}
	}
	return v
}
