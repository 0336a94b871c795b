package chat

import (
	"context"
	"strings"

	"creative-canvas-api/internal/domain/entity"
	apperrors "creative-canvas-api/pkg/errors"
	"creative-canvas-api/pkg/logger"
)

const branchTitleSuffix = " (branch)"

// reserve 在空闲时占用控制器执行存储操作，期间拒绝发送
func (c *Controller) reserve() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle || c.loading > 0 {
		return apperrors.ErrSendInProgress
	}
	c.loading++
	return nil
}

func (c *Controller) release() {
	c.mu.Lock()
	c.loading--
	c.touched = c.deps.Clock()
	c.mu.Unlock()
}

// stopAndWait 取消当前请求并等待其收尾
func (c *Controller) stopAndWait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopAndReserve 取消当前请求，待其收尾后占用控制器
// 收尾与占用之间若有新的发送抢先进入，则再次取消
func (c *Controller) stopAndReserve(ctx context.Context) error {
	for {
		if err := c.stopAndWait(ctx); err != nil {
			return err
		}
		c.mu.Lock()
		if c.state == StateIdle {
			c.loading++
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
	}
}

func (c *Controller) indexOf(id string) int {
	for i, m := range c.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// EditMessage 修改已有消息内容
func (c *Controller) EditMessage(ctx context.Context, id, content string) (*entity.ChatMessage, error) {
	ctx = c.nodeContext(ctx)
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.ErrEmptyMessage
	}
	if id == "" {
		return nil, apperrors.ErrMessageNotFound
	}
	if err := c.reserve(); err != nil {
		return nil, err
	}
	defer c.release()

	c.mu.Lock()
	if c.indexOf(id) < 0 || c.session == nil {
		c.mu.Unlock()
		return nil, apperrors.ErrMessageNotFound
	}
	sessionID := c.session.ID
	c.mu.Unlock()

	if err := c.deps.Repo.UpdateMessage(ctx, sessionID, id, content); err != nil {
		return nil, storeFailure(ctx, "update message", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return nil, apperrors.ErrMessageNotFound
	}
	c.messages[i].Content = content
	return c.messages[i].Clone(), nil
}

// DeleteMessage 按位置删除消息；已持久化的同时从存储删除
// id 用于校验位置上的消息未被替换，可为空（尚未持久化的消息）
func (c *Controller) DeleteMessage(ctx context.Context, id string, index int) error {
	ctx = c.nodeContext(ctx)
	if err := c.reserve(); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	if index < 0 || index >= len(c.messages) || (id != "" && c.messages[index].ID != id) {
		c.mu.Unlock()
		return apperrors.ErrMessageNotFound
	}
	target := c.messages[index]
	var sessionID string
	if c.session != nil {
		sessionID = c.session.ID
	}
	c.mu.Unlock()

	if target.Persisted() && sessionID != "" {
		if err := c.deps.Repo.DeleteMessage(ctx, sessionID, target.ID); err != nil {
			return storeFailure(ctx, "delete message", err)
		}
	}
	c.removeLocal(target)
	return nil
}

// Branch 以当前会话前 fromIndex+1 条消息创建新会话并切换过去
func (c *Controller) Branch(ctx context.Context, fromIndex int) (*entity.ChatSession, error) {
	ctx = c.nodeContext(ctx)
	if err := c.reserve(); err != nil {
		return nil, err
	}
	defer c.release()

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, apperrors.ErrNoActiveSession
	}
	if fromIndex < 0 || fromIndex >= len(c.messages) {
		c.mu.Unlock()
		return nil, apperrors.ErrInvalidParam.WithDetail("branch index out of range")
	}
	title := c.session.Title + branchTitleSuffix
	copies := make([]*entity.ChatMessage, 0, fromIndex+1)
	for _, m := range c.messages[:fromIndex+1] {
		if strings.TrimSpace(m.Content) == "" && len(m.Images) == 0 && len(m.Creatives) == 0 {
			continue
		}
		copies = append(copies, m.Clone())
	}
	c.mu.Unlock()

	session := entity.NewChatSession(c.boardID, c.blockID, title)
	if err := c.deps.Repo.BranchSession(ctx, session, copies); err != nil {
		return nil, storeFailure(ctx, "branch session", err)
	}
	msgs, err := c.deps.Repo.ListMessages(ctx, session.ID)
	if err != nil {
		return nil, storeFailure(ctx, "load branch", err)
	}

	logger.Info(ctx, "session branched", "from_index", fromIndex, "new_session_id", session.ID, "messages", len(msgs))

	c.mu.Lock()
	c.session = session
	c.messages = msgs
	c.mu.Unlock()
	return cloneSession(session), nil
}

// SwitchSession 切换到已有会话
// 进行中的请求先被取消；并发切换时仅最后一次生效，其余返回 ErrLoadSuperseded
func (c *Controller) SwitchSession(ctx context.Context, id string) (*Snapshot, error) {
	ctx = c.nodeContext(ctx)
	if err := c.stopAndReserve(ctx); err != nil {
		return nil, err
	}

	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.loadCancel != nil {
		c.loadCancel()
	}
	c.loadSeq++
	seq := c.loadSeq
	c.loadCancel = cancel
	c.mu.Unlock()

	session, msgs, err := c.load(loadCtx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading--
	c.touched = c.deps.Clock()
	if seq != c.loadSeq || loadCtx.Err() != nil {
		return nil, ErrLoadSuperseded
	}
	c.loadCancel = nil
	if err != nil {
		return nil, err
	}
	c.session = session
	c.messages = msgs

	snap := c.snapshotLocked()
	return &snap, nil
}

func (c *Controller) load(ctx context.Context, id string) (*entity.ChatSession, []*entity.ChatMessage, error) {
	session, err := c.deps.Repo.GetSession(ctx, id)
	if err != nil {
		return nil, nil, storeFailure(ctx, "load session", err)
	}
	if session == nil || session.BoardID != c.boardID || session.BlockID != c.blockID {
		return nil, nil, apperrors.ErrSessionNotFound
	}
	msgs, err := c.deps.Repo.ListMessages(ctx, id)
	if err != nil {
		return nil, nil, storeFailure(ctx, "load messages", err)
	}
	return session, msgs, nil
}

// NewSession 清空当前会话，下一次发送时创建新会话
func (c *Controller) NewSession(ctx context.Context) error {
	if err := c.stopAndReserve(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
		c.loadSeq++
	}
	c.session = nil
	c.messages = nil
	return nil
}

// ListSessions 当前节点的会话，按最近更新排序
func (c *Controller) ListSessions(ctx context.Context) ([]*entity.ChatSession, error) {
	sessions, err := c.deps.Repo.ListSessions(ctx, c.boardID, c.blockID)
	if err != nil {
		return nil, storeFailure(c.nodeContext(ctx), "list sessions", err)
	}
	return sessions, nil
}

// DeleteSession 删除会话及其消息，并尽力清理其引用的图片
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	ctx = logger.WithContext(c.nodeContext(ctx), logger.SessionIDKey, id)

	session, err := c.deps.Repo.GetSession(ctx, id)
	if err != nil {
		return storeFailure(ctx, "load session", err)
	}
	if session == nil || session.BoardID != c.boardID || session.BlockID != c.blockID {
		return apperrors.ErrSessionNotFound
	}

	// 活动会话在删除完成前保持占用，期间的发送被拒绝
	c.mu.Lock()
	active := c.session != nil && c.session.ID == id
	c.mu.Unlock()
	if active {
		if err := c.stopAndReserve(ctx); err != nil {
			return err
		}
		defer c.release()
	}

	if c.deps.Cleaner != nil {
		urls, err := c.deps.Repo.ListSessionImages(ctx, id)
		if err != nil {
			logger.Warn(ctx, "failed to list session images", "error", err.Error())
		} else if len(urls) > 0 {
			c.deps.Cleaner.CleanupSessionImages(ctx, session, urls)
		}
	}

	if err := c.deps.Repo.DeleteSession(ctx, id); err != nil {
		return storeFailure(ctx, "delete session", err)
	}

	c.mu.Lock()
	if c.session != nil && c.session.ID == id {
		c.session = nil
		c.messages = nil
	}
	c.mu.Unlock()
	logger.Info(ctx, "session deleted")
	return nil
}
