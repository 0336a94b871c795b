// Package creative 将对话回复转换为创意变体并合并到下游创意节点
package creative

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"creative-canvas-api/internal/application/chat/sections"
	"creative-canvas-api/internal/domain/entity"
	"creative-canvas-api/pkg/utils"
)

const (
	DefaultVariantChannel = "facebook"

	// 首行短于该长度时才尝试去除开场白
	introMaxRunes = 80
	// 超过该长度的正文使用固定标题
	scriptMinRunes = 500
	scriptHeadline = "Script"
)

var introPatterns = []*regexp.Regexp{
	// "Here's ..." 只有以冒号结尾或提到草稿、版本、选项时才算开场白
	regexp.MustCompile(`(?i)^(here[’']?s|here is|here are)\b.*:$`),
	regexp.MustCompile(`(?i)^(here[’']?s|here is|here are)\b.*\b(drafts?|versions?|options?|variations?|some|a few)\b.*$`),
	regexp.MustCompile(`(?i)^(sure|certainly|absolutely|of course|great)\b[!,.]?.*:$`),
	regexp.MustCompile(`(?i)^(sure|certainly|absolutely|of course)[!.]?$`),
	regexp.MustCompile(`(?i)^(i'?ve|i have) (created|written|drafted|put together|prepared)\b.*$`),
	regexp.MustCompile(`(?i)^below (is|are)\b.*(:|\b(drafts?|versions?|options?|variations?|some|a few)\b.*)$`),
}

var (
	headlineLabelRe = regexp.MustCompile(`(?im)^[ \t]*\**[ \t]*headline[ \t]*\**[ \t]*:[ \t]*\**[ \t]*(.+?)[ \t]*$`)
	ctaLabelRe      = regexp.MustCompile(`(?im)^[ \t]*\**[ \t]*(?:cta|call to action)[ \t]*\**[ \t]*:[ \t]*\**[ \t]*(.+?)[ \t]*$`)
	primaryLabelRe  = regexp.MustCompile(`(?ims)^[ \t]*\**[ \t]*primary text[ \t]*\**[ \t]*:[ \t]*\**[ \t]*(.+?)(?:\n[ \t]*\n|\n[ \t]*\**[ \t]*(?:headline|cta|call to action)[ \t]*\**[ \t]*:|\z)`)
	markupRe        = regexp.MustCompile(`^(#{1,6}\s+|[-*•]\s+|\d+[.)]\s+)`)
)

// StripIntro 仅当首行整行是开场白且足够短时去掉首行
func StripIntro(text string) string {
	text = strings.TrimSpace(text)
	first, rest, found := strings.Cut(text, "\n")
	if !found {
		return text
	}
	first = strings.TrimSpace(first)
	if utils.RuneLen(first) >= introMaxRunes {
		return text
	}
	for _, re := range introPatterns {
		if re.MatchString(first) {
			rest = strings.TrimSpace(rest)
			if rest == "" {
				return text
			}
			return rest
		}
	}
	return text
}

// FromText 先尝试按 Headline / Primary Text / CTA 标签抽取，否则整段作为正文
func FromText(text string) entity.CreativeVariant {
	cleaned := StripIntro(text)

	headline := labelValue(headlineLabelRe, cleaned)
	primary := labelValue(primaryLabelRe, cleaned)
	if headline != "" && primary != "" {
		return newVariant(headline, primary, labelValue(ctaLabelRe, cleaned), nil)
	}

	return newVariant(fallbackHeadline(cleaned), cleaned, "", nil)
}

func fallbackHeadline(text string) string {
	if utils.RuneLen(text) > scriptMinRunes {
		return scriptHeadline
	}
	first, _, _ := strings.Cut(text, "\n")
	return plain(first)
}

// FromSection 广告概念段落优先使用已抽取的标注字段
func FromSection(sec sections.Section) entity.CreativeVariant {
	if m := sec.Metadata; m != nil && (m.Headline != "" || m.PrimaryText != "") {
		headline := m.Headline
		if headline == "" {
			headline = sec.Title
		}
		return newVariant(headline, m.PrimaryText, m.CTA, nil)
	}
	v := FromText(sec.Content)
	if sec.Title != "" && utils.RuneLen(StripIntro(sec.Content)) <= scriptMinRunes {
		v.Headline = sec.Title
	}
	return v
}

// FromItem 按条目类型放入对应字段
func FromItem(item sections.Item) entity.CreativeVariant {
	switch item.Type {
	case sections.ItemHeadline:
		return newVariant(item.Content, "", "", nil)
	case sections.ItemCTA:
		return newVariant("", "", item.Content, nil)
	default:
		return newVariant("", item.Content, "", nil)
	}
}

// FromMessage 整条消息作为一个变体，附带消息图片
func FromMessage(msg *entity.ChatMessage) entity.CreativeVariant {
	v := FromText(msg.Content)
	if len(msg.Images) > 0 {
		v.Images = append([]string(nil), msg.Images...)
	}
	return v
}

// FromCreatives 结构化创意逐个转换
func FromCreatives(creatives []entity.AdCreative) []entity.CreativeVariant {
	out := make([]entity.CreativeVariant, 0, len(creatives))
	for _, c := range creatives {
		primary := c.PrimaryText
		if primary == "" {
			primary = c.DescriptionText
		}
		headline := c.Headline
		if headline == "" {
			headline = c.Title
		}
		var images []string
		if c.ImageData != "" {
			images = []string{c.ImageData}
		}
		out = append(out, newVariant(headline, primary, "", images))
	}
	return out
}

func newVariant(headline, primary, cta string, images []string) entity.CreativeVariant {
	if images == nil {
		images = []string{}
	}
	return entity.CreativeVariant{
		ID:          uuid.NewString(),
		Channel:     DefaultVariantChannel,
		Headline:    strings.TrimSpace(headline),
		PrimaryText: strings.TrimSpace(primary),
		CTAButton:   strings.TrimSpace(cta),
		Images:      images,
	}
}

func labelValue(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.Trim(strings.TrimSpace(m[1]), "*")
}

// plain 去掉行首的 markdown 标记与粗体
func plain(line string) string {
	line = strings.TrimSpace(line)
	line = markupRe.ReplaceAllString(line, "")
	line = strings.ReplaceAll(line, "**", "")
	return strings.TrimSpace(line)
}
