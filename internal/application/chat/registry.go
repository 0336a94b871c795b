package chat

import (
	"context"
	"sync"
	"time"

	"creative-canvas-api/pkg/logger"
)

type nodeKey struct {
	boardID string
	blockID string
}

// Registry 按 (board, block) 管理控制器，各节点状态互相独立
// 配置了 IdleTTL 时，空闲超时的控制器由 Run 回收，下次访问时重新创建
type Registry struct {
	deps Deps
	opts Options

	mu          sync.Mutex
	controllers map[nodeKey]*Controller
}

func NewRegistry(deps Deps, opts Options) *Registry {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Registry{
		deps:        deps,
		opts:        opts,
		controllers: make(map[nodeKey]*Controller),
	}
}

// Get 返回节点控制器，不存在时创建
func (r *Registry) Get(boardID, blockID string) *Controller {
	key := nodeKey{boardID, blockID}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[key]; ok {
		c.touch()
		return c
	}
	c := NewController(boardID, blockID, r.deps, r.opts)
	r.controllers[key] = c
	return c
}

// Lookup 仅查找，不创建
func (r *Registry) Lookup(boardID, blockID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[nodeKey{boardID, blockID}]
	return c, ok
}

// Len 当前驻留的控制器数量
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// EvictIdle 回收空闲超过 ttl 的控制器，返回回收数量
// 持有注册表锁期间检查，被回收的控制器不会同时被 Get 取走
func (r *Registry) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := r.deps.Clock().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, c := range r.controllers {
		if c.idleBefore(cutoff) {
			delete(r.controllers, key)
			n++
		}
	}
	return n
}

// Run 定期回收空闲控制器，直到 ctx 结束；未配置 IdleTTL 时直接返回
func (r *Registry) Run(ctx context.Context) {
	ttl := r.opts.IdleTTL
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(ttl); n > 0 {
				logger.Debug(ctx, "evicted idle chat controllers", "count", n, "remaining", r.Len())
			}
		}
	}
}

// StopAll 取消所有进行中的请求，返回被取消的数量
func (r *Registry) StopAll() int {
	r.mu.Lock()
	list := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		list = append(list, c)
	}
	r.mu.Unlock()

	n := 0
	for _, c := range list {
		if c.Stop() {
			n++
		}
	}
	return n
}
