// Package chat 画布节点上的对话引擎：发送、重新生成、编辑、分支与会话切换
package chat

import (
	"strings"
	"time"

	"creative-canvas-api/internal/application/chat/contextbudget"
	"creative-canvas-api/internal/config"
)

// Options 对话引擎参数
type Options struct {
	TotalBudget      int
	PerBlockBudget   int
	Cooldown         time.Duration
	CoalesceInterval time.Duration
	MaxVisionImages  int
	RegenerateGrace  time.Duration
	CreativeKeywords []string
	ImageModels      []string
	VisionModels     []string
	DefaultModel     string
	// IdleTTL 为 0 时控制器常驻
	IdleTTL time.Duration
}

// OptionsFromConfig 从应用配置构建
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TotalBudget:      cfg.Chat.ContextTotalBudget,
		PerBlockBudget:   cfg.Chat.ContextPerBlockBudget,
		Cooldown:         cfg.Chat.SendCooldown,
		CoalesceInterval: cfg.Chat.CoalesceInterval,
		MaxVisionImages:  cfg.Chat.MaxVisionImages,
		RegenerateGrace:  cfg.Chat.RegenerateGrace,
		CreativeKeywords: cfg.Chat.CreativeKeywords,
		ImageModels:      cfg.LLM.ImageModels,
		VisionModels:     cfg.LLM.VisionModels,
		DefaultModel:     cfg.LLM.DefaultModel,
		IdleTTL:          cfg.Chat.ControllerIdleTTL,
	}
}

func (o Options) withDefaults() Options {
	if o.TotalBudget <= 0 {
		o.TotalBudget = contextbudget.DefaultTotalBudget
	}
	if o.PerBlockBudget <= 0 {
		o.PerBlockBudget = contextbudget.DefaultPerBlockBudget
	}
	if o.Cooldown <= 0 {
		o.Cooldown = time.Second
	}
	if o.MaxVisionImages <= 0 {
		o.MaxVisionImages = 5
	}
	if o.RegenerateGrace <= 0 {
		o.RegenerateGrace = 100 * time.Millisecond
	}
	return o
}

// Path 调用路径
type Path string

const (
	PathStream   Path = "stream"
	PathCreative Path = "creative"
	PathImage    Path = "image"
)

// route 图片模型优先，其次创意关键词，其余走流式对话
func (o Options) route(text, model string) Path {
	if containsFold(o.ImageModels, model) {
		return PathImage
	}
	lower := strings.ToLower(text)
	for _, kw := range o.CreativeKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return PathCreative
		}
	}
	return PathStream
}

func (o Options) isVision(model string) bool {
	return containsFold(o.VisionModels, model)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
