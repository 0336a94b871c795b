// Package sections 将助手回复解析为有类型的段落与条目
package sections

// SectionType 段落类型
type SectionType string

const (
	SectionIntro            SectionType = "intro"
	SectionAdConcept        SectionType = "ad-concept"
	SectionHeadlineVariants SectionType = "headline-variants"
	SectionCopy             SectionType = "copy"
	SectionGeneric          SectionType = "generic"
)

// ItemType 条目类型
type ItemType string

const (
	ItemHeadline    ItemType = "headline"
	ItemCopy        ItemType = "copy"
	ItemCTA         ItemType = "cta"
	ItemAngle       ItemType = "angle"
	ItemDescription ItemType = "description"
	ItemGeneric     ItemType = "generic"
)

// Metadata 广告概念段落中抽取的标注字段
type Metadata struct {
	Angle       string `json:"angle,omitempty"`
	Headline    string `json:"headline,omitempty"`
	PrimaryText string `json:"primaryText,omitempty"`
	CTA         string `json:"cta,omitempty"`
}

func (m *Metadata) empty() bool {
	return m == nil || (m.Angle == "" && m.Headline == "" && m.PrimaryText == "" && m.CTA == "")
}

// Item 段落内的单个结构化条目
type Item struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Content string   `json:"content"`
	Type    ItemType `json:"type"`
}

// Section 回复中连续的一段
type Section struct {
	ID       string      `json:"id"`
	Type     SectionType `json:"type"`
	Title    string      `json:"title,omitempty"`
	Content  string      `json:"content"`
	Items    []Item      `json:"items,omitempty"`
	Metadata *Metadata   `json:"metadata,omitempty"`
}
