// Package cleanup 负责会话删除后的图片清理
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"creative-canvas-api/internal/domain/entity"
	"creative-canvas-api/internal/domain/service"
	"creative-canvas-api/internal/infrastructure/messaging"
	"creative-canvas-api/pkg/logger"
)

const defaultConcurrency = 4

// ownership 可选：判断 URL 是否属于本存储
type ownership interface {
	Owns(url string) bool
}

// Janitor 并发删除图片，单个失败不影响其余
type Janitor struct {
	store       service.BlobStore
	concurrency int
}

func NewJanitor(store service.BlobStore, concurrency int) *Janitor {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Janitor{store: store, concurrency: concurrency}
}

// DeleteAll 去重后删除，返回所有失败的合并错误
func (j *Janitor) DeleteAll(ctx context.Context, urls []string) error {
	owned, _ := j.store.(ownership)

	seen := make(map[string]struct{}, len(urls))
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(j.concurrency)

	for _, url := range urls {
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		if owned != nil && !owned.Owns(url) {
			continue
		}

		g.Go(func() error {
			if err := j.store.Delete(ctx, url); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", url, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// HandleMessage job-worker 的消息处理入口；返回错误时消息保留待重试
func (j *Janitor) HandleMessage(ctx context.Context, msg *messaging.Message) error {
	var job messaging.BlobCleanupMessage
	if err := msg.UnmarshalPayload(&job); err != nil {
		// 载荷损坏无法重试成功
		logger.Error(ctx, "drop malformed cleanup job", err, "message_id", msg.ID)
		return nil
	}
	if err := j.DeleteAll(ctx, job.URLs); err != nil {
		return err
	}
	logger.Info(ctx, "session images removed", "count", len(job.URLs))
	return nil
}

// Publisher 清理任务投递
type Publisher interface {
	PublishBlobCleanup(ctx context.Context, job *messaging.BlobCleanupMessage) (string, error)
}

// Dispatcher 删除会话时调度图片清理
// 配置了 Publisher 时投递到队列，投递失败或未配置时直接删除
type Dispatcher struct {
	publisher Publisher
	janitor   *Janitor
}

func NewDispatcher(publisher Publisher, janitor *Janitor) *Dispatcher {
	return &Dispatcher{publisher: publisher, janitor: janitor}
}

// CleanupSessionImages 尽力而为，不返回错误
func (d *Dispatcher) CleanupSessionImages(ctx context.Context, session *entity.ChatSession, urls []string) {
	if len(urls) == 0 {
		return
	}

	if d.publisher != nil {
		_, err := d.publisher.PublishBlobCleanup(ctx, &messaging.BlobCleanupMessage{
			SessionID: session.ID,
			BoardID:   session.BoardID,
			BlockID:   session.BlockID,
			URLs:      urls,
		})
		if err == nil {
			return
		}
		logger.Warn(ctx, "failed to enqueue image cleanup, deleting inline", "error", err.Error())
	}

	if d.janitor == nil {
		return
	}
	if err := d.janitor.DeleteAll(ctx, urls); err != nil {
		logger.Warn(ctx, "some session images were not deleted", "error", err.Error())
	}
}
