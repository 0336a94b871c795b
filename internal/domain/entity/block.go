package entity

import (
	"fmt"
	"strings"
)

// BlockKind 参考块类型
type BlockKind string

const (
	BlockKindText     BlockKind = "text"
	BlockKindDocument BlockKind = "document"
	BlockKindImage    BlockKind = "image"
	BlockKindURL      BlockKind = "url"
	BlockKindGroup    BlockKind = "group"
)

// ConnectedBlock 连接到对话节点的只读参考块
// 实现仅限本包内的五种类型
type ConnectedBlock interface {
	BlockID() string
	BlockTitle() string
	Kind() BlockKind
	// Instruction 用户为该块附加的指令，可为空
	Instruction() string

	sealed()
}

// BlockBase 各类参考块的公共字段
type BlockBase struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	InstructionPrompt string `json:"instruction_prompt,omitempty"`
}

func (b BlockBase) BlockID() string     { return b.ID }
func (b BlockBase) BlockTitle() string  { return b.Title }
func (b BlockBase) Instruction() string { return b.InstructionPrompt }
func (BlockBase) sealed()               {}

// TextBlock 纯文本
type TextBlock struct {
	BlockBase
	Content string `json:"content"`
}

func (TextBlock) Kind() BlockKind { return BlockKindText }

// URLBlock 网页引用，Content 为抓取后的正文
type URLBlock struct {
	BlockBase
	URL     string `json:"url"`
	Content string `json:"content"`
}

func (URLBlock) Kind() BlockKind { return BlockKindURL }

// DocumentBlock 上传文档，Content 为空表示尚未解析
type DocumentBlock struct {
	BlockBase
	FilePath string `json:"file_path,omitempty"`
	Content  string `json:"content,omitempty"`
}

func (DocumentBlock) Kind() BlockKind { return BlockKindDocument }

// Parsed 文档是否已有解析文本
func (d DocumentBlock) Parsed() bool {
	return strings.TrimSpace(d.Content) != ""
}

// ImageBlock 图片引用
type ImageBlock struct {
	BlockBase
	URL      string `json:"url,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

func (ImageBlock) Kind() BlockKind { return BlockKindImage }

// Source 优先返回 URL，其次文件路径
func (i ImageBlock) Source() string {
	if i.URL != "" {
		return i.URL
	}
	return i.FilePath
}

// GroupBlock 分组，InstructionPrompt 作为组内风格说明
type GroupBlock struct {
	BlockBase
}

func (GroupBlock) Kind() BlockKind { return BlockKindGroup }

// BlockFields 存储层的扁平块记录
type BlockFields struct {
	ID                string
	Kind              BlockKind
	Title             string
	Content           string
	URL               string
	FilePath          string
	InstructionPrompt string
}

// NewConnectedBlock 将扁平记录转换为具体块类型
func NewConnectedBlock(f BlockFields) (ConnectedBlock, error) {
	base := BlockBase{ID: f.ID, Title: f.Title, InstructionPrompt: f.InstructionPrompt}
	switch f.Kind {
	case BlockKindText:
		return TextBlock{BlockBase: base, Content: f.Content}, nil
	case BlockKindURL:
		return URLBlock{BlockBase: base, URL: f.URL, Content: f.Content}, nil
	case BlockKindDocument:
		return DocumentBlock{BlockBase: base, FilePath: f.FilePath, Content: f.Content}, nil
	case BlockKindImage:
		return ImageBlock{BlockBase: base, URL: f.URL, FilePath: f.FilePath}, nil
	case BlockKindGroup:
		return GroupBlock{BlockBase: base}, nil
	default:
		return nil, fmt.Errorf("unknown block kind: %q", f.Kind)
	}
}

// ImageSources 按连接顺序收集图片块地址，最多 limit 个
func ImageSources(blocks []ConnectedBlock, limit int) []string {
	var out []string
	for _, b := range blocks {
		if limit > 0 && len(out) >= limit {
			break
		}
		if img, ok := b.(ImageBlock); ok && img.URL != "" {
			out = append(out, img.URL)
		}
	}
	return out
}
