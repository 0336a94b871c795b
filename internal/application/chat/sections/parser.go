package sections

import (
	"fmt"
	"regexp"
	"strings"

	"creative-canvas-api/pkg/utils"
)

const (
	// numberedBoundaryMinRunes 编号行达到该长度才可能开启新段落
	numberedBoundaryMinRunes = 60
	// introMaxRunes 无标题短段落视为开场白的上限
	introMaxRunes = 200
)

var (
	headerRe        = regexp.MustCompile(`^#{2,3}\s+(.+?)\s*#*\s*$`)
	dividerRe       = regexp.MustCompile(`^(-{3,}|={3,})\s*$`)
	numberedLineRe  = regexp.MustCompile(`^\d+[.)]\s+\S`)
	boldLabelLineRe = regexp.MustCompile(`^\*\*([^*]+?)\*\*\s*:?\s*$`)
	boldFragmentRe  = regexp.MustCompile(`\*\*([^*]+?)\*\*`)
)

// Parse 将原始回复拆分为段落
// 全函数：任何输入都返回至少一个段落
func Parse(raw string) []Section {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")

	var (
		blocks []rawSection
		cur    rawSection
	)
	flush := func(next rawSection) {
		blocks = append(blocks, cur)
		cur = next
	}

	for _, line := range strings.Split(normalized, "\n") {
		trimmed := strings.TrimSpace(line)

		if m := headerRe.FindStringSubmatch(trimmed); m != nil {
			flush(rawSection{title: cleanTitle(m[1])})
			continue
		}
		if dividerRe.MatchString(trimmed) {
			flush(rawSection{})
			continue
		}
		if cur.hasContent() {
			if numberedLineRe.MatchString(trimmed) && utils.RuneLen(trimmed) >= numberedBoundaryMinRunes {
				// 编号行本身保留为新段落内容
				flush(rawSection{title: boldTitle(trimmed)})
				cur.lines = append(cur.lines, line)
				continue
			}
			if m := boldLabelLineRe.FindStringSubmatch(trimmed); m != nil {
				flush(rawSection{title: cleanTitle(m[1])})
				continue
			}
		}
		cur.lines = append(cur.lines, line)
	}
	blocks = append(blocks, cur)

	var out []Section
	for _, b := range blocks {
		content := strings.TrimSpace(strings.Join(b.lines, "\n"))
		if content == "" {
			continue
		}
		out = append(out, buildSection(len(out)+1, b.title, content))
	}

	if len(out) == 0 {
		return []Section{{ID: "section-1", Type: SectionGeneric, Content: raw}}
	}
	return out
}

type rawSection struct {
	title string
	lines []string
}

// hasContent 当前段落是否已有非空行
func (s *rawSection) hasContent() bool {
	for _, l := range s.lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

func buildSection(n int, title, content string) Section {
	sec := Section{
		ID:      fmt.Sprintf("section-%d", n),
		Title:   title,
		Content: content,
	}
	sec.Type = classify(title, content)
	if sec.Type == SectionAdConcept {
		if md := extractMetadata(content); !md.empty() {
			sec.Metadata = md
		}
	}
	sec.Items = extractItems(sec.ID, sec.Type, content)
	return sec
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "**")
	s = strings.TrimSuffix(s, "**")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ":")
	return strings.TrimSpace(s)
}

func boldTitle(line string) string {
	if m := boldFragmentRe.FindStringSubmatch(line); m != nil {
		return cleanTitle(m[1])
	}
	return ""
}
