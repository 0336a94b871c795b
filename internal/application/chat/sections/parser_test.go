package sections

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_HeadlineList(t *testing.T) {
	got := Parse("## Headlines\n1. Save Big Today\n2. Act Now")

	require.Len(t, got, 1)
	sec := got[0]
	assert.Equal(t, SectionHeadlineVariants, sec.Type)
	assert.Equal(t, "Headlines", sec.Title)
	require.Len(t, sec.Items, 2)
	assert.Equal(t, "#1", sec.Items[0].Label)
	assert.Equal(t, "Save Big Today", sec.Items[0].Content)
	assert.Equal(t, ItemHeadline, sec.Items[0].Type)
	assert.Equal(t, "#2", sec.Items[1].Label)
	assert.Equal(t, "Act Now", sec.Items[1].Content)
	assert.Equal(t, ItemHeadline, sec.Items[1].Type)
	assert.Equal(t, "section-1-item-2", sec.Items[1].ID)
}

func TestParse_AdConceptMetadata(t *testing.T) {
	got := Parse("**Angle:** Urgency\n**Headline:** Buy Now\n**Primary Text:** Limited stock.\n**CTA:** Shop Now")

	require.Len(t, got, 1)
	sec := got[0]
	assert.Equal(t, SectionAdConcept, sec.Type)
	require.NotNil(t, sec.Metadata)
	assert.Equal(t, Metadata{
		Angle:       "Urgency",
		Headline:    "Buy Now",
		PrimaryText: "Limited stock.",
		CTA:         "Shop Now",
	}, *sec.Metadata)

	require.Len(t, sec.Items, 4)
	assert.Equal(t, []ItemType{ItemAngle, ItemHeadline, ItemCopy, ItemCTA},
		[]ItemType{sec.Items[0].Type, sec.Items[1].Type, sec.Items[2].Type, sec.Items[3].Type})
	assert.Equal(t, "Primary Text", sec.Items[2].Label)
}

func TestParse_MultilinePrimaryText(t *testing.T) {
	raw := "### Ad Concept 1\nHeadline: Spring is here\nPrimary Text: Fresh styles.\nNew colors every week.\n\nCTA: Shop Now"
	got := Parse(raw)

	require.Len(t, got, 1)
	require.NotNil(t, got[0].Metadata)
	assert.Equal(t, SectionAdConcept, got[0].Type)
	assert.Equal(t, "Fresh styles.\nNew colors every week.", got[0].Metadata.PrimaryText)
	assert.Equal(t, "Spring is here", got[0].Metadata.Headline)
	assert.Equal(t, "Shop Now", got[0].Metadata.CTA)
	assert.Empty(t, got[0].Metadata.Angle)
}

func TestParse_Total(t *testing.T) {
	inputs := []string{
		"",
		"   \n\n  ",
		"---",
		"## ",
		"## Title only",
		"**",
		"1.",
		"plain",
		strings.Repeat("=", 10) + "\n" + strings.Repeat("-", 3),
		"\r\n## Win\r\n- a\r\n",
		"**Bold:**\n\n\n**Other:**",
		"“unterminated",
	}
	for _, in := range inputs {
		got := Parse(in)
		require.GreaterOrEqual(t, len(got), 1, "input %q", in)
	}

	got := Parse("")
	require.Len(t, got, 1)
	assert.Equal(t, SectionGeneric, got[0].Type)
	assert.Equal(t, "", got[0].Content)

	got = Parse("---\n\n## Empty")
	require.Len(t, got, 1)
	assert.Equal(t, SectionGeneric, got[0].Type)
	assert.Equal(t, "---\n\n## Empty", got[0].Content)
}

func TestParse_IntroGuard(t *testing.T) {
	long := "1. **Urgency Angle:** Highlight that the spring sale ends this weekend and stock is limited"
	// 开头的编号行不应切出新段落
	got := Parse(long + "\nMore detail here.")
	require.Len(t, got, 1)

	// 已有内容后，长编号行开启新段落，标题取自粗体部分
	got = Parse("Here are two concepts for you.\n" + long + "\n" +
		"2. **Value Angle:** Emphasize the savings customers get compared with last season prices")
	require.Len(t, got, 3)
	assert.Equal(t, SectionIntro, got[0].Type)
	assert.Equal(t, "Urgency Angle", got[1].Title)
	assert.Equal(t, SectionAdConcept, got[1].Type)
	assert.True(t, strings.HasPrefix(got[1].Content, "1. **Urgency Angle:**"))
	assert.Equal(t, "Value Angle", got[2].Title)
}

func TestParse_ShortNumberedLinesStayTogether(t *testing.T) {
	got := Parse("Options:\n1. One\n2. Two\n3. Three")
	require.Len(t, got, 1)
	assert.Len(t, got[0].Items, 3)
}

func TestParse_BoldLabelBoundary(t *testing.T) {
	got := Parse("Intro line.\n**Body Copy**\nOur jackets keep you warm all winter long.\n**Hooks:**\n- Cold? Not anymore\n- Warmth you can wear")

	require.Len(t, got, 3)
	assert.Equal(t, SectionIntro, got[0].Type)
	assert.Equal(t, "Body Copy", got[1].Title)
	assert.Equal(t, SectionCopy, got[1].Type)
	assert.Equal(t, "Hooks", got[2].Title)
	assert.Equal(t, SectionHeadlineVariants, got[2].Type)
	require.Len(t, got[2].Items, 2)
	assert.Equal(t, "", got[2].Items[0].Label)
	assert.Equal(t, ItemHeadline, got[2].Items[0].Type)
}

func TestParse_BoldLabelAtStartDoesNotSplit(t *testing.T) {
	got := Parse("**Summary**\nA short summary.")
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Content, "**Summary**")
}

func TestParse_DividersAndHeaders(t *testing.T) {
	raw := "Sure! Here you go.\n\n## Headline Options\n- Spring Into Savings\n- Fresh Looks, Fresh Deals\n\n---\n\n### Primary Text\n" +
		"Discover our new collection with breathable fabrics, bold colors and prices that make it easy to refresh your wardrobe this season without compromise.\n" +
		"====\nLet me know if you want more."
	got := Parse(raw)

	require.Len(t, got, 4)
	assert.Equal(t, SectionIntro, got[0].Type)
	assert.Equal(t, SectionHeadlineVariants, got[1].Type)
	assert.Equal(t, SectionCopy, got[2].Type)
	assert.Equal(t, "Primary Text", got[2].Title)
	assert.Equal(t, SectionIntro, got[3].Type)
	for i, s := range got {
		assert.Equal(t, fmt.Sprintf("section-%d", i+1), s.ID)
	}
}

func TestParse_LevelOneAndFourHeadersAreContent(t *testing.T) {
	got := Parse("# Big\n#### Small\ntext")
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Content, "# Big")
}

func TestItemTyping(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		label   string
		content string
		typ     ItemType
	}{
		{"cta verb", "## Ideas\n- Shop the spring collection", "", "Shop the spring collection", ItemCTA},
		{"sign up", "## Ideas\n- sign up today", "", "sign up today", ItemCTA},
		{"angle marker", "## Ideas\n- Hook: fear of missing out", "", "Hook: fear of missing out", ItemAngle},
		{"inherit copy", "## Body Copy\n- Short.", "", "Short.", ItemCopy},
		{"short headline", "## Ideas\n- Bold new look", "", "Bold new look", ItemHeadline},
		{"long copy", "## Ideas\n- " + strings.Repeat("Great fabric. ", 12), "", strings.TrimSpace(strings.Repeat("Great fabric. ", 12)), ItemCopy},
		{"generic middle", "## Ideas\n- It works. Really well.", "", "It works. Really well.", ItemGeneric},
		{"label override", "## Ideas\n**Description:** Shop now for less", "Description", "Shop now for less", ItemDescription},
		{"cap label", "## Ideas\nButton: Learn More", "Button", "Learn More", ItemCTA},
		{"copy label before cta", "## Ideas\nCTA Button Text: Learn More", "CTA Button Text", "Learn More", ItemCopy},
		{"bold copy label before cta", "## Ideas\n**Call to Action Text:** Shop now", "Call to Action Text", "Shop now", ItemCopy},
		{"headline label before copy", "## Ideas\n**Headline Text:** Fresh picks", "Headline Text", "Fresh picks", ItemHeadline},
		{"embedded bold label", "## Ideas\n1. **Headline:** A calmer morning. Every day.", "#1", "A calmer morning. Every day.", ItemHeadline},
		{"smart quotes", "## Ideas\n- “Feel the difference”", "", "Feel the difference", ItemHeadline},
		{"straight quotes", "## Ideas\n- \"Feel the difference\"", "", "Feel the difference", ItemHeadline},
		{"wrapped bold", "## Taglines\n1. **Made to Last**", "#1", "Made to Last", ItemHeadline},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.raw)
			require.Len(t, got, 1)
			require.Len(t, got[0].Items, 1)
			item := got[0].Items[0]
			assert.Equal(t, tc.label, item.Label)
			assert.Equal(t, tc.content, item.Content)
			assert.Equal(t, tc.typ, item.Type)
		})
	}
}

func TestParse_ItemsComeFromSourceLines(t *testing.T) {
	raws := []string{
		"## Headlines\n1. Save Big Today\n2. Act Now",
		"**Angle:** Urgency\n**Headline:** Buy Now\n**Primary Text:** Limited stock.\n**CTA:** Shop Now",
		"Intro.\n## Copy\n- “Quoted copy line”\nCaption: Sunny days ahead\n* star bullet\n• dot bullet",
	}
	for _, raw := range raws {
		for _, sec := range Parse(raw) {
			lines := strings.Split(sec.Content, "\n")
			next := 0
			for _, item := range sec.Items {
				found := false
				for next < len(lines) {
					if strings.Contains(lines[next], item.Content) {
						found = true
						next++
						break
					}
					next++
				}
				assert.True(t, found, "item %q not found in order in %q", item.Content, sec.Content)
			}
		}
	}
}

func serializeItems(sec Section) string {
	var b strings.Builder
	b.WriteString("## " + sec.Title + "\n")
	for _, item := range sec.Items {
		switch {
		case strings.HasPrefix(item.Label, "#"):
			fmt.Fprintf(&b, "%s. %s\n", strings.TrimPrefix(item.Label, "#"), item.Content)
		case item.Label == "":
			fmt.Fprintf(&b, "- %s\n", item.Content)
		default:
			fmt.Fprintf(&b, "**%s:** %s\n", item.Label, item.Content)
		}
	}
	return b.String()
}

func itemKeys(items []Item) []string {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, string(it.Type)+"|"+it.Label+"|"+it.Content)
	}
	return keys
}

func TestParse_ReparseItemsIsStable(t *testing.T) {
	raws := []string{
		"## Headlines\n1. Save Big Today\n2. Act Now",
		"## Ad Concept\n**Angle:** Urgency\n**Headline:** Buy Now\n**Primary Text:** Limited stock.\n**CTA:** Shop Now",
		"## Body Copy\n- Warm.\n- Soft and light.\nCaption: Hello sun",
	}
	for _, raw := range raws {
		first := Parse(raw)
		require.Len(t, first, 1)

		again := Parse(serializeItems(first[0]))
		require.Len(t, again, 1, raw)
		assert.Equal(t, first[0].Type, again[0].Type)
		assert.ElementsMatch(t, itemKeys(first[0].Items), itemKeys(again[0].Items))
	}
}

func TestParse_Deterministic(t *testing.T) {
	raw := "Hi!\n## Headlines\n- A\n- B\n---\n**CTA:** Buy"
	assert.Equal(t, Parse(raw), Parse(raw))
}
