package sections

import (
	"fmt"
	"regexp"
	"strings"

	"creative-canvas-api/pkg/utils"
)

const (
	headlineMaxRunes = 80
	copyMinRunes     = 150
)

var (
	numberedItemRe  = regexp.MustCompile(`^(\d+)[.)]\s+(.+)$`)
	bulletItemRe    = regexp.MustCompile(`^(?:[-*•])\s+(.+)$`)
	boldLabelItemRe = regexp.MustCompile(`^\*\*([^*:]+?)\s*(?::\s*\*\*|\*\*\s*:)\s*(.+)$`)
	capLabelItemRe  = regexp.MustCompile(`^([A-Z][A-Za-z0-9 /&'-]{0,40}):\s+(.+)$`)
	embeddedLabelRe = regexp.MustCompile(`^\*\*([^*:]+?)\s*(?::\s*\*\*|\*\*\s*:)`)

	ctaVerbRe = regexp.MustCompile(`(?i)^(get|start|try|buy|shop|claim|discover|join|sign up|learn more|click|order|download)\b`)
)

// labelRule 标签关键字到条目类型的映射，按顺序匹配
type labelRule struct {
	keywords []string
	typ      ItemType
}

// "CTA Button Text" 含 text，归为 copy
var labelRules = []labelRule{
	{[]string{"headline", "title"}, ItemHeadline},
	{[]string{"copy", "body", "text", "primary"}, ItemCopy},
	{[]string{"cta", "call to action", "button"}, ItemCTA},
	{[]string{"angle", "hook"}, ItemAngle},
	{[]string{"description", "desc"}, ItemDescription},
}

func extractItems(sectionID string, sectionType SectionType, content string) []Item {
	var items []Item
	for _, line := range strings.Split(content, "\n") {
		label, body, typeHint, ok := matchItemLine(strings.TrimSpace(line))
		if !ok {
			continue
		}
		cleaned := cleanContent(body)
		if cleaned == "" {
			continue
		}

		typ := inferItemType(cleaned, sectionType)
		if lt, ok := typeFromLabel(typeHint); ok {
			typ = lt
		}
		items = append(items, Item{
			ID:      fmt.Sprintf("%s-item-%d", sectionID, len(items)+1),
			Label:   label,
			Content: cleaned,
			Type:    typ,
		})
	}
	return items
}

// matchItemLine 依次尝试编号、项目符号、标签三种格式
// typeHint 为用于推断类型的标签文本
func matchItemLine(line string) (label, body, typeHint string, ok bool) {
	if m := numberedItemRe.FindStringSubmatch(line); m != nil {
		return "#" + m[1], m[2], embeddedLabel(m[2]), true
	}
	if m := bulletItemRe.FindStringSubmatch(line); m != nil {
		return "", m[1], embeddedLabel(m[1]), true
	}
	if m := boldLabelItemRe.FindStringSubmatch(line); m != nil {
		l := strings.TrimSpace(m[1])
		return l, m[2], l, true
	}
	if m := capLabelItemRe.FindStringSubmatch(line); m != nil {
		l := strings.TrimSpace(m[1])
		return l, m[2], l, true
	}
	return "", "", "", false
}

func embeddedLabel(body string) string {
	if m := embeddedLabelRe.FindStringSubmatch(strings.TrimSpace(body)); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func inferItemType(content string, sectionType SectionType) ItemType {
	lower := strings.ToLower(content)
	switch {
	case ctaVerbRe.MatchString(content):
		return ItemCTA
	case strings.Contains(lower, "angle:") || strings.Contains(lower, "hook:"):
		return ItemAngle
	case sectionType == SectionHeadlineVariants:
		return ItemHeadline
	case sectionType == SectionCopy:
		return ItemCopy
	}

	n := utils.RuneLen(content)
	switch {
	case n < headlineMaxRunes && !strings.Contains(content, "."):
		return ItemHeadline
	case n > copyMinRunes:
		return ItemCopy
	default:
		return ItemGeneric
	}
}

func typeFromLabel(label string) (ItemType, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return "", false
	}
	for _, rule := range labelRules {
		for _, kw := range rule.keywords {
			if strings.Contains(l, kw) {
				return rule.typ, true
			}
		}
	}
	return "", false
}
