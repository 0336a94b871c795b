package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"creative-canvas-api/internal/application/chat/contextbudget"
	"creative-canvas-api/internal/application/chat/stream"
	"creative-canvas-api/internal/domain/entity"
	"creative-canvas-api/internal/domain/repository"
	"creative-canvas-api/internal/domain/service"
	apperrors "creative-canvas-api/pkg/errors"
	"creative-canvas-api/pkg/logger"
	"creative-canvas-api/pkg/metrics"
)

// State 节点对话状态
type State string

const (
	StateIdle           State = "idle"
	StateSending        State = "sending"
	StateStreaming      State = "streaming"
	StateAwaitingResult State = "awaiting_result"
)

// ErrLoadSuperseded 会话加载被后续切换取代，结果已丢弃
var ErrLoadSuperseded = fmt.Errorf("session load superseded: %w", context.Canceled)

// SendGate 跨副本发送闸门
type SendGate interface {
	Acquire(ctx context.Context, boardID, blockID string, ttl time.Duration) (bool, error)
}

// ImageCleaner 删除会话时清理引用的图片，尽力而为
type ImageCleaner interface {
	CleanupSessionImages(ctx context.Context, session *entity.ChatSession, urls []string)
}

// Deps 控制器依赖；Gate 与 Cleaner 可为空
type Deps struct {
	Repo    repository.ChatRepository
	Blocks  repository.BlockRepository
	Gateway service.ModelGateway
	Gate    SendGate
	Cleaner ImageCleaner
	Clock   func() time.Time
}

// SendResult 一次发送的结果
type SendResult struct {
	Session     *entity.ChatSession
	Path        Path
	UserMessage *entity.ChatMessage
	// Reply 取消且未收到任何文本时为 nil
	Reply     *entity.ChatMessage
	Cancelled bool
}

// Snapshot 控制器状态快照
type Snapshot struct {
	BoardID  string                `json:"board_id"`
	BlockID  string                `json:"block_id"`
	State    State                 `json:"state"`
	Session  *entity.ChatSession   `json:"session,omitempty"`
	Model    string                `json:"model"`
	Messages []*entity.ChatMessage `json:"messages"`
}

// Controller 单个画布节点的对话状态机
// Idle -> Sending -> (Streaming | AwaitingResult) -> Idle，Stop 可随时中断回到 Idle
type Controller struct {
	boardID  string
	blockID  string
	deps     Deps
	opts     Options
	consumer *stream.Consumer

	mu       sync.Mutex
	state    State
	session  *entity.ChatSession
	messages []*entity.ChatMessage
	model    string
	lastSend time.Time
	modelSeq uint64
	// 最近一次被取用或结束操作的时间，用于空闲回收
	touched time.Time

	// 当前操作的取消句柄，同一时刻至多一个
	cancel context.CancelFunc
	done   chan struct{}

	loading    int
	loadSeq    uint64
	loadCancel context.CancelFunc
}

func NewController(boardID, blockID string, deps Deps, opts Options) *Controller {
	opts = opts.withDefaults()
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Controller{
		boardID:  boardID,
		blockID:  blockID,
		deps:     deps,
		opts:     opts,
		consumer: stream.NewConsumer(opts.CoalesceInterval),
		state:    StateIdle,
		model:    opts.DefaultModel,
		touched:  deps.Clock(),
	}
}

func (c *Controller) touch() {
	c.mu.Lock()
	c.touched = c.deps.Clock()
	c.mu.Unlock()
}

// idleBefore 空闲且自 cutoff 起未被使用
func (c *Controller) idleBefore(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateIdle && c.loading == 0 && c.cancel == nil && c.touched.Before(cutoff)
}

type operation struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *Controller) nodeContext(ctx context.Context) context.Context {
	return logger.WithNode(ctx, c.boardID, c.blockID)
}

// begin 校验忙碌与冷却，并占用状态机
func (c *Controller) begin(ctx context.Context) (*operation, error) {
	c.mu.Lock()
	if c.state != StateIdle || c.loading > 0 {
		c.mu.Unlock()
		metrics.ChatSendRejected.WithLabelValues("busy").Inc()
		return nil, apperrors.ErrSendInProgress
	}
	now := c.deps.Clock()
	if !c.lastSend.IsZero() && now.Sub(c.lastSend) < c.opts.Cooldown {
		c.mu.Unlock()
		metrics.ChatSendRejected.WithLabelValues("cooldown").Inc()
		return nil, apperrors.ErrSendCooldown
	}

	opCtx, cancel := context.WithCancel(ctx)
	op := &operation{ctx: opCtx, cancel: cancel, done: make(chan struct{})}
	c.state = StateSending
	c.lastSend = now
	c.cancel = cancel
	c.done = op.done
	c.mu.Unlock()

	if c.deps.Gate != nil {
		ok, err := c.deps.Gate.Acquire(ctx, c.boardID, c.blockID, c.opts.Cooldown)
		switch {
		case err != nil:
			logger.Warn(ctx, "send gate unavailable, falling back to local cooldown", "error", err.Error())
		case !ok:
			c.finish(op)
			metrics.ChatSendRejected.WithLabelValues("cooldown").Inc()
			return nil, apperrors.ErrSendCooldown
		}
	}
	return op, nil
}

func (c *Controller) finish(op *operation) {
	op.cancel()
	c.mu.Lock()
	c.state = StateIdle
	c.touched = c.deps.Clock()
	if c.done == op.done {
		c.cancel = nil
		c.done = nil
	}
	c.mu.Unlock()
	close(op.done)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Send 发送用户消息并生成回复，onUpdate 接收流式路径的累计文本
func (c *Controller) Send(ctx context.Context, text string, onUpdate stream.UpdateFunc) (*SendResult, error) {
	ctx = c.nodeContext(ctx)
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.ChatSendRejected.WithLabelValues("empty").Inc()
		return nil, apperrors.ErrEmptyMessage
	}

	op, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer c.finish(op)

	return c.run(op, text, c.Model(), onUpdate)
}

// Regenerate 删除最后一条用户消息及其后的消息并重新发送
// alternateModel 非空时仅本次使用，结束后经过短暂延迟恢复原模型
func (c *Controller) Regenerate(ctx context.Context, alternateModel string, onUpdate stream.UpdateFunc) (*SendResult, error) {
	ctx = c.nodeContext(ctx)
	op, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer c.finish(op)

	text, err := c.truncateFromLastUser(op.ctx)
	if err != nil {
		return nil, err
	}

	model := c.Model()
	if alternateModel = strings.TrimSpace(alternateModel); alternateModel != "" && alternateModel != model {
		defer c.swapModel(alternateModel)()
		model = alternateModel
	}
	return c.run(op, text, model, onUpdate)
}

// swapModel 临时替换模型，返回的函数在宽限期后恢复；期间若 SetModel 被调用则不恢复
func (c *Controller) swapModel(alt string) func() {
	c.mu.Lock()
	original := c.model
	c.model = alt
	c.modelSeq++
	seq := c.modelSeq
	c.mu.Unlock()

	return func() {
		time.AfterFunc(c.opts.RegenerateGrace, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.modelSeq == seq {
				c.model = original
			}
		})
	}
}

func (c *Controller) truncateFromLastUser(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return "", apperrors.ErrNoActiveSession
	}
	idx := -1
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == entity.RoleUser {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return "", apperrors.ErrNothingToRetry
	}
	sessionID := c.session.ID
	text := c.messages[idx].Content
	var ids []string
	for _, m := range c.messages[idx:] {
		if m.Persisted() {
			ids = append(ids, m.ID)
		}
	}
	c.mu.Unlock()

	for _, id := range ids {
		if err := c.deps.Repo.DeleteMessage(ctx, sessionID, id); err != nil {
			return "", storeFailure(ctx, "truncate history", err)
		}
	}

	// 状态机处于 Sending，期间列表不会被其他操作修改
	c.mu.Lock()
	c.messages = c.messages[:idx]
	c.mu.Unlock()
	return text, nil
}

// references 连接块组装出的上下文与可用图片
type references struct {
	budget contextbudget.Result
	images []string
}

func (c *Controller) loadReferences(ctx context.Context) references {
	if c.deps.Blocks == nil {
		return references{}
	}
	blocks, err := c.deps.Blocks.ListConnected(ctx, c.boardID, c.blockID)
	if err != nil {
		logger.Warn(ctx, "failed to load connected blocks, sending without context", "error", err.Error())
		return references{}
	}
	if len(blocks) == 0 {
		return references{}
	}

	res := contextbudget.Assemble(blocks, c.opts.TotalBudget, c.opts.PerBlockBudget)
	metrics.ContextChars.Observe(float64(res.BodyChars))
	if res.Skipped > 0 {
		metrics.ContextBlocksSkipped.Add(float64(res.Skipped))
		logger.Info(ctx, "context budget exhausted",
			"included", res.Included,
			"skipped", res.Skipped,
		)
	}
	return references{
		budget: res,
		images: entity.ImageSources(blocks, c.opts.MaxVisionImages),
	}
}

func (c *Controller) run(op *operation, text, model string, onUpdate stream.UpdateFunc) (*SendResult, error) {
	ctx := op.ctx

	session, err := c.ensureSession(ctx, text)
	if err != nil {
		return nil, storeFailure(ctx, "create session", err)
	}
	ctx = logger.WithContext(ctx, logger.SessionIDKey, session.ID)

	userMsg := entity.NewChatMessage(session.ID, entity.RoleUser, text)
	c.appendLocal(userMsg)
	if err := c.persist(ctx, userMsg); err != nil {
		c.removeLocal(userMsg)
		return nil, storeFailure(ctx, "save user message", err)
	}

	path := c.opts.route(text, model)
	refs := c.loadReferences(ctx)

	placeholder := entity.NewChatMessage(session.ID, entity.RoleAssistant, "")
	c.appendLocal(placeholder)

	result := &SendResult{
		Session:     cloneSession(session),
		Path:        path,
		UserMessage: c.cloneLocal(userMsg),
	}

	var cancelled bool
	if path == PathStream {
		cancelled, err = c.runStream(ctx, model, refs, placeholder, onUpdate)
	} else {
		cancelled, err = c.runStructured(ctx, path, text, model, refs, placeholder)
	}

	result.Cancelled = cancelled
	result.Reply = c.cloneLocal(placeholder)
	metrics.ChatSendsTotal.WithLabelValues(string(path), outcome(cancelled, err)).Inc()

	if err != nil {
		return result, err
	}
	return result, nil
}

func outcome(cancelled bool, err error) string {
	switch {
	case cancelled:
		return "cancelled"
	case err == nil:
		return "success"
	case apperrors.HasCode(err, apperrors.CodeTooManyRequests):
		return "rate_limited"
	case apperrors.HasCode(err, apperrors.CodeQuotaExceeded):
		return "quota_exceeded"
	default:
		return "failed"
	}
}

func (c *Controller) runStream(ctx context.Context, model string, refs references, placeholder *entity.ChatMessage, onUpdate stream.UpdateFunc) (bool, error) {
	c.setState(StateStreaming)

	req := service.StreamRequest{
		Model:    model,
		Context:  refs.budget.Text,
		Messages: c.history(placeholder),
	}
	// 仅视觉模型附带参考图片，挂在最后一条用户消息上
	if c.opts.isVision(model) && len(refs.images) > 0 {
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == entity.RoleUser {
				req.Messages[i].Images = refs.images
				break
			}
		}
	}

	start := time.Now()
	body, err := c.deps.Gateway.Stream(ctx, req)
	if err != nil {
		return c.settle(ctx, placeholder, "", err)
	}
	defer body.Close()

	final, err := c.consumer.Consume(ctx, body, func(partial string) {
		c.mu.Lock()
		placeholder.Content = partial
		c.mu.Unlock()
		if onUpdate != nil {
			onUpdate(partial)
		}
	})
	metrics.ChatStreamDuration.Observe(time.Since(start).Seconds())
	return c.settle(ctx, placeholder, final, err)
}

func (c *Controller) runStructured(ctx context.Context, path Path, text, model string, refs references, placeholder *entity.ChatMessage) (bool, error) {
	c.setState(StateAwaitingResult)

	mode := service.ModeCreative
	if path == PathImage {
		mode = service.ModeImage
	}
	res, err := c.deps.Gateway.Invoke(ctx, service.InvokeRequest{
		Mode:    mode,
		Prompt:  text,
		Model:   model,
		Context: refs.budget.Text,
		Images:  refs.images,
	})
	if err != nil {
		return c.settle(ctx, placeholder, "", err)
	}
	if strings.TrimSpace(res.Message) == "" && len(res.Images) == 0 && len(res.Creatives) == 0 {
		return c.settle(ctx, placeholder, "", errors.New("empty structured result"))
	}

	c.mu.Lock()
	placeholder.Content = res.Message
	placeholder.Images = res.Images
	placeholder.Creatives = res.Creatives
	c.mu.Unlock()

	if err := c.persist(ctx, placeholder); err != nil {
		return false, storeFailure(ctx, "save reply", err)
	}
	return false, nil
}

// settle 统一处理流结束：
// 正常结束写入一次；取消保留已收到的文本；失败时有部分文本则保留，否则撤回占位消息
func (c *Controller) settle(ctx context.Context, placeholder *entity.ChatMessage, text string, err error) (bool, error) {
	cancelled := err != nil && errors.Is(err, context.Canceled)

	c.mu.Lock()
	placeholder.Content = text
	c.mu.Unlock()

	if text == "" {
		c.removeLocal(placeholder)
		switch {
		case cancelled:
			return true, nil
		case err == nil:
			return false, apperrors.ErrLLMCallFailed.WithError(errors.New("empty response"))
		default:
			return false, userFacing(ctx, err)
		}
	}

	// ctx 可能已被取消，写入使用独立上下文
	if perr := c.persist(context.WithoutCancel(ctx), placeholder); perr != nil {
		return cancelled, storeFailure(ctx, "save reply", perr)
	}
	if err != nil && !cancelled {
		return false, userFacing(ctx, err)
	}
	return cancelled, nil
}

// userFacing 模型调用错误转为用户可见的提示，原始错误只进日志
func userFacing(ctx context.Context, err error) error {
	if apperrors.IsAppError(err) {
		ae := apperrors.AsAppError(err)
		logger.Warn(ctx, "model invocation rejected", "code", ae.Code, "error", err.Error())
		return ae
	}
	logger.Error(ctx, "model invocation failed", err)
	return apperrors.ErrLLMCallFailed.WithError(err)
}

func storeFailure(ctx context.Context, action string, err error) error {
	logger.Error(ctx, "conversation store failure", err, "action", action)
	return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to save conversation, please try again")
}

func (c *Controller) ensureSession(ctx context.Context, text string) (*entity.ChatSession, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		return s, nil
	}

	s = entity.NewChatSession(c.boardID, c.blockID, entity.SessionTitleFrom(text))
	if err := c.deps.Repo.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return s, nil
}

// persist 写入副本，成功后回填 ID，避免与快照读取竞争
func (c *Controller) persist(ctx context.Context, msg *entity.ChatMessage) error {
	c.mu.Lock()
	cp := msg.Clone()
	c.mu.Unlock()

	if err := c.deps.Repo.AppendMessage(ctx, cp); err != nil {
		return err
	}

	c.mu.Lock()
	msg.ID = cp.ID
	msg.CreatedAt = cp.CreatedAt
	c.mu.Unlock()
	return nil
}

func (c *Controller) history(until *entity.ChatMessage) []service.StreamMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]service.StreamMessage, 0, len(c.messages))
	for _, m := range c.messages {
		if m == until {
			break
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, service.StreamMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (c *Controller) appendLocal(msg *entity.ChatMessage) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}

func (c *Controller) removeLocal(msg *entity.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.messages {
		if m == msg {
			c.messages = append(c.messages[:i:i], c.messages[i+1:]...)
			return
		}
	}
}

// cloneLocal 返回副本；消息已不在列表中时返回 nil
func (c *Controller) cloneLocal(msg *entity.ChatMessage) *entity.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		if m == msg {
			return m.Clone()
		}
	}
	return nil
}

func cloneSession(s *entity.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// Stop 取消当前请求，已收到的文本保留
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// Model 当前默认模型
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// SetModel 修改默认模型，同时放弃尚未执行的模型恢复
func (c *Controller) SetModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return apperrors.ErrInvalidParam.WithDetail("model is required")
	}
	c.mu.Lock()
	c.model = model
	c.modelSeq++
	c.mu.Unlock()
	return nil
}

// Snapshot 返回状态副本
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	msgs := make([]*entity.ChatMessage, 0, len(c.messages))
	for _, m := range c.messages {
		msgs = append(msgs, m.Clone())
	}
	return Snapshot{
		BoardID:  c.boardID,
		BlockID:  c.blockID,
		State:    c.state,
		Session:  cloneSession(c.session),
		Model:    c.model,
		Messages: msgs,
	}
}
