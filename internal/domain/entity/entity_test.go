package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTitleFrom(t *testing.T) {
	assert.Equal(t, "New chat", SessionTitleFrom("   \n "))
	assert.Equal(t, "Spring sale ideas", SessionTitleFrom("  Spring   sale\nideas "))

	long := strings.Repeat("创意", 40)
	title := SessionTitleFrom(long)
	assert.True(t, strings.HasSuffix(title, "..."))
	assert.Equal(t, SessionTitleMaxRunes+3, len([]rune(title)))
}

func TestNewConnectedBlock(t *testing.T) {
	cases := []struct {
		fields BlockFields
		kind   BlockKind
	}{
		{BlockFields{ID: "1", Kind: BlockKindText, Content: "hi"}, BlockKindText},
		{BlockFields{ID: "2", Kind: BlockKindURL, URL: "https://x"}, BlockKindURL},
		{BlockFields{ID: "3", Kind: BlockKindDocument, FilePath: "a.pdf"}, BlockKindDocument},
		{BlockFields{ID: "4", Kind: BlockKindImage, URL: "https://img"}, BlockKindImage},
		{BlockFields{ID: "5", Kind: BlockKindGroup, InstructionPrompt: "bold"}, BlockKindGroup},
	}
	for _, tc := range cases {
		b, err := NewConnectedBlock(tc.fields)
		require.NoError(t, err)
		assert.Equal(t, tc.kind, b.Kind())
		assert.Equal(t, tc.fields.ID, b.BlockID())
	}

	_, err := NewConnectedBlock(BlockFields{Kind: "video"})
	require.Error(t, err)
}

func TestDocumentBlockParsed(t *testing.T) {
	assert.False(t, DocumentBlock{Content: "  "}.Parsed())
	assert.True(t, DocumentBlock{Content: "body"}.Parsed())
}

func TestImageSources(t *testing.T) {
	blocks := []ConnectedBlock{
		TextBlock{Content: "x"},
		ImageBlock{URL: "u1"},
		ImageBlock{FilePath: "local.png"},
		ImageBlock{URL: "u2"},
		ImageBlock{URL: "u3"},
	}
	assert.Equal(t, []string{"u1", "u2"}, ImageSources(blocks, 2))
	assert.Equal(t, []string{"u1", "u2", "u3"}, ImageSources(blocks, 0))
}

func TestChatMessageCloneAndImages(t *testing.T) {
	m := &ChatMessage{
		ID:     "m1",
		Images: []string{"https://blob/a.png"},
		Creatives: []AdCreative{
			{Headline: "h", ImageData: "https://blob/b.png", Tags: []string{"x"}},
			{Headline: "inline", ImageData: "data:image/png;base64,AAAA"},
		},
	}
	cp := m.Clone()
	cp.Images[0] = "changed"
	cp.Creatives[0].Tags[0] = "changed"

	assert.Equal(t, "https://blob/a.png", m.Images[0])
	assert.Equal(t, "x", m.Creatives[0].Tags[0])
	assert.Equal(t, []string{"https://blob/a.png", "https://blob/b.png"}, m.ReferencedImages())
	assert.True(t, m.Persisted())
	assert.False(t, (&ChatMessage{}).Persisted())
}
