// Package stream 消费模型端点返回的增量 token 流
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"creative-canvas-api/pkg/logger"
	"creative-canvas-api/pkg/metrics"
	"creative-canvas-api/pkg/utils"
)

const (
	DefaultCoalesceInterval = 50 * time.Millisecond

	doneSentinel = "[DONE]"
	readSize     = 4096
)

var (
	// ErrCancelled 调用方主动取消，返回时同时带回已接收文本
	ErrCancelled = fmt.Errorf("stream cancelled: %w", context.Canceled)
	// ErrStreamFailed 流内返回了错误片段
	ErrStreamFailed = errors.New("stream reported an error")
)

// UpdateFunc 接收当前累计的完整文本
type UpdateFunc func(partial string)

// Consumer 逐行读取 "data: {json}" 事件流并按固定节奏合并界面更新
type Consumer struct {
	interval time.Duration
}

func NewConsumer(interval time.Duration) *Consumer {
	if interval <= 0 {
		interval = DefaultCoalesceInterval
	}
	return &Consumer{interval: interval}
}

type readResult struct {
	data []byte
	err  error
}

// Consume 读取直到结束标记、EOF、错误或 ctx 取消
// 取消时返回已累计文本与 ErrCancelled；读错误时返回已累计文本与该错误
func (c *Consumer) Consume(ctx context.Context, r io.Reader, onUpdate UpdateFunc) (string, error) {
	if onUpdate == nil {
		onUpdate = func(string) {}
	}

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	done := make(chan struct{})
	defer close(done)
	chunks := make(chan readResult)
	go func() {
		for {
			buf := make([]byte, readSize)
			n, err := r.Read(buf)
			select {
			case chunks <- readResult{data: buf[:n], err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	s := &state{onUpdate: onUpdate}
	defer func() {
		metrics.ChatStreamTokens.Add(float64(s.tokens))
	}()

	var (
		partial []byte
		timer   *time.Timer
		timerC  <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	defer stopTimer()

	for {
		if err := ctx.Err(); err != nil {
			return s.text(), cancelErr(err)
		}

		select {
		case <-ctx.Done():
			return s.text(), cancelErr(ctx.Err())

		case <-timerC:
			timer, timerC = nil, nil
			if s.pending {
				s.flush()
			}

		case rr := <-chunks:
			partial = append(partial, rr.data...)
			finished := false
			for !finished {
				idx := bytes.IndexByte(partial, '\n')
				if idx < 0 {
					break
				}
				line := string(partial[:idx])
				partial = partial[idx+1:]
				var err error
				finished, err = s.handleLine(ctx, line)
				if err != nil {
					s.finalFlush()
					return s.text(), err
				}
			}

			if !finished && rr.err != nil {
				if !errors.Is(rr.err, io.EOF) {
					s.finalFlush()
					return s.text(), fmt.Errorf("failed to read stream: %w", rr.err)
				}
				// 末尾可能缺少换行
				if len(partial) > 0 {
					if _, err := s.handleLine(ctx, string(partial)); err != nil {
						s.finalFlush()
						return s.text(), err
					}
				}
				finished = true
			}

			if finished {
				s.finalFlush()
				return s.text(), nil
			}

			if s.pending {
				since := time.Since(s.lastFlush)
				switch {
				case s.lastFlush.IsZero() || since >= c.interval:
					stopTimer()
					s.flush()
				case timerC == nil:
					timer = time.NewTimer(c.interval - since)
					timerC = timer.C
				}
			}
		}
	}
}

func cancelErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return fmt.Errorf("stream aborted: %w", err)
}

type state struct {
	acc       strings.Builder
	tokens    int
	pending   bool
	lastFlush time.Time
	onUpdate  UpdateFunc
}

func (s *state) text() string { return s.acc.String() }

func (s *state) flush() {
	s.onUpdate(s.acc.String())
	s.pending = false
	s.lastFlush = time.Now()
}

func (s *state) finalFlush() {
	if s.pending {
		s.flush()
	}
}

// handleLine 处理一行完整数据，返回 true 表示遇到结束标记
func (s *state) handleLine(ctx context.Context, line string) (bool, error) {
	payload, ok := dataPayload(line)
	if !ok {
		return false, nil
	}
	if payload == doneSentinel {
		return true, nil
	}

	token, err := decodeDelta([]byte(payload))
	if err != nil {
		if errors.Is(err, ErrStreamFailed) {
			return false, err
		}
		metrics.ChatStreamMalformedLines.Inc()
		logger.Warn(ctx, "skip malformed stream line",
			"line", utils.TruncateByRunes(payload, 200),
			"error", err.Error(),
		)
		return false, nil
	}
	if token == "" {
		return false, nil
	}
	s.acc.WriteString(token)
	s.tokens++
	s.pending = true
	return false, nil
}

// dataPayload 提取 data 行负载；空行、注释行与其他字段返回 false
func dataPayload(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ":") {
		return "", false
	}
	field, value, found := strings.Cut(line, ":")
	if !found || field != "data" {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// deltaChunk 兼容 choices[].delta.content 与扁平 content/delta 两种形态
type deltaChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text string `json:"text"`
	} `json:"choices"`
	Content string          `json:"content"`
	Delta   json.RawMessage `json:"delta"`
	Error   *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func decodeDelta(payload []byte) (string, error) {
	var chunk deltaChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", err
	}
	if chunk.Error != nil {
		msg := chunk.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("code %v", chunk.Error.Code)
		}
		return "", fmt.Errorf("%w: %s", ErrStreamFailed, msg)
	}

	var b strings.Builder
	for _, ch := range chunk.Choices {
		b.WriteString(ch.Delta.Content)
		b.WriteString(ch.Text)
	}
	if b.Len() > 0 {
		return b.String(), nil
	}
	if chunk.Content != "" {
		return chunk.Content, nil
	}
	if len(chunk.Delta) > 0 {
		var s string
		if err := json.Unmarshal(chunk.Delta, &s); err == nil {
			return s, nil
		}
		var obj struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(chunk.Delta, &obj); err != nil {
			return "", err
		}
		return obj.Content, nil
	}
	return "", nil
}
