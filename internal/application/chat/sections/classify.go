package sections

import (
	"regexp"
	"strings"

	"creative-canvas-api/pkg/utils"
)

// 段落分类规则按顺序匹配，先命中者生效
var (
	adSignalRe = regexp.MustCompile(`(?im)\*\*\s*(angle|headline|primary text|cta|hook)\s*:?\s*\*\*|^\s*(angle|headline|primary text|cta)\s*:`)

	adConceptTitleRe  = regexp.MustCompile(`(?i)\b(ad concept|angle|variant)\b`)
	adConceptMarkerRe = regexp.MustCompile(`(?i)\*\*\s*(angle|headline|primary text|cta)\s*:\s*\*\*|\*\*\s*(angle|headline|primary text|cta)\s*\*\*\s*:`)

	headlineTitleRe   = regexp.MustCompile(`(?i)\b(headlines?|hooks?|taglines?|subject lines?)\b`)
	headlineContentRe = regexp.MustCompile(`(?im)^[^\n]*\b(headlines|headline options|headline variations|hooks|taglines)\b[^\n]*:\s*$`)

	copyTitleRe = regexp.MustCompile(`(?i)\b(copy|body|primary text|script|caption|description)\b`)
)

// metadata 字段；primary text 可跨行，直到空行、下一个粗体标签或结尾
var (
	angleFieldRe       = regexp.MustCompile(`(?im)^\s*\*{0,2}\s*angle\s*\*{0,2}\s*:\s*\*{0,2}\s*(.+?)\s*$`)
	headlineFieldRe    = regexp.MustCompile(`(?im)^\s*\*{0,2}\s*headline\s*\*{0,2}\s*:\s*\*{0,2}\s*(.+?)\s*$`)
	ctaFieldRe         = regexp.MustCompile(`(?im)^\s*\*{0,2}\s*(?:cta|call to action)\s*\*{0,2}\s*:\s*\*{0,2}\s*(.+?)\s*$`)
	primaryTextFieldRe = regexp.MustCompile(`(?ims)^\s*\*{0,2}\s*primary text\s*\*{0,2}\s*:\s*\*{0,2}\s*(.+?)(?:\n[ \t]*\n|\n[ \t]*\*\*|\z)`)
)

func classify(title, content string) SectionType {
	switch {
	case title == "" && utils.RuneLen(content) < introMaxRunes && !adSignalRe.MatchString(content):
		return SectionIntro
	case adConceptTitleRe.MatchString(title) || adConceptMarkerRe.MatchString(content):
		return SectionAdConcept
	case headlineTitleRe.MatchString(title) || headlineContentRe.MatchString(content):
		return SectionHeadlineVariants
	case copyTitleRe.MatchString(title):
		return SectionCopy
	default:
		return SectionGeneric
	}
}

func extractMetadata(content string) *Metadata {
	return &Metadata{
		Angle:       firstField(angleFieldRe, content),
		Headline:    firstField(headlineFieldRe, content),
		PrimaryText: firstField(primaryTextFieldRe, content),
		CTA:         firstField(ctaFieldRe, content),
	}
}

func firstField(re *regexp.Regexp, content string) string {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return cleanContent(m[1])
}

// cleanContent 去掉粗体标签前缀、整体粗体与成对引号
func cleanContent(s string) string {
	s = strings.TrimSpace(s)
	s = boldPrefixRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "**") && strings.HasSuffix(s, "**") && len(s) > 4 {
		s = strings.TrimSpace(s[2 : len(s)-2])
	}
	return stripQuotes(s)
}

var boldPrefixRe = regexp.MustCompile(`^\*\*[^*]+?(?::\s*\*\*|\*\*\s*:)\s*`)

var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'“':  '”',
	'‘':  '’',
	'«':  '»',
}

func stripQuotes(s string) string {
	r := []rune(s)
	if len(r) < 2 {
		return s
	}
	if closing, ok := quotePairs[r[0]]; ok && r[len(r)-1] == closing {
		return strings.TrimSpace(string(r[1 : len(r)-1]))
	}
	return s
}
