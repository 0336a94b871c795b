package entity

import "time"

// DefaultVariantChannel 未指定投放渠道时使用
const DefaultVariantChannel = "facebook"

// AdCreative 结构化创意生成结果，作为消息元数据保存
type AdCreative struct {
	Title           string   `json:"title"`
	Headline        string   `json:"headline"`
	PrimaryText     string   `json:"primary_text"`
	DescriptionText string   `json:"description_text"`
	VisualPrompt    string   `json:"visual_prompt,omitempty"`
	Tags            []string `json:"tags"`
	ImageData       string   `json:"image_data,omitempty"`
}

func (c AdCreative) Clone() AdCreative {
	if c.Tags != nil {
		c.Tags = append([]string(nil), c.Tags...)
	}
	return c
}

// CreativeVariant 合并到下游创意节点的标准化单元
type CreativeVariant struct {
	ID          string   `json:"id"`
	Channel     string   `json:"channel"`
	Headline    string   `json:"headline,omitempty"`
	PrimaryText string   `json:"primaryText,omitempty"`
	CTAButton   string   `json:"ctaButton,omitempty"`
	Images      []string `json:"images"`
}

// CreativeTarget 接收创意变体的下游节点
type CreativeTarget struct {
	ID        string            `json:"id"`
	BoardID   string            `json:"board_id"`
	Name      string            `json:"name"`
	Variants  []CreativeVariant `json:"variants"`
	UpdatedAt time.Time         `json:"updated_at"`
}
