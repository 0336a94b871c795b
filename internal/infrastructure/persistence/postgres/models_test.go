package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creative-canvas-api/internal/domain/entity"
)

func TestMessageModel_RoundTrip(t *testing.T) {
	now := time.Now()
	msg := &entity.ChatMessage{
		ID:        "m1",
		SessionID: "s1",
		Role:      entity.RoleAssistant,
		Content:   "Here you go",
		Images:    []string{"https://cdn.example.com/a.png"},
		Creatives: []entity.AdCreative{{Title: "T", Headline: "H", Tags: []string{"spring"}}},
		CreatedAt: now,
	}

	got := newMessageModel(msg).toEntity()
	assert.Equal(t, msg, got)
}

func TestMessageModel_EmptyMetadataStaysNil(t *testing.T) {
	got := newMessageModel(&entity.ChatMessage{ID: "m", Role: entity.RoleUser}).toEntity()
	assert.Nil(t, got.Images)
	assert.Nil(t, got.Creatives)
}

func TestCreativeList_ValueAndScan(t *testing.T) {
	empty, err := creativeList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)

	v, err := creativeList{{Headline: "Buy"}}.Value()
	require.NoError(t, err)

	var back creativeList
	require.NoError(t, back.Scan([]byte(v.(string))))
	require.Len(t, back, 1)
	assert.Equal(t, "Buy", back[0].Headline)

	var fromNil creativeList
	require.NoError(t, fromNil.Scan(nil))
	assert.Nil(t, fromNil)

	assert.Error(t, fromNil.Scan(42))
}

func TestVariantList_Scan(t *testing.T) {
	var vl variantList
	require.NoError(t, vl.Scan(`[{"id":"v1","channel":"facebook","primaryText":"P","images":[]}]`))
	require.Len(t, vl, 1)
	assert.Equal(t, "P", vl[0].PrimaryText)

	target := (&creativeTargetModel{ID: "t"}).toEntity()
	assert.NotNil(t, target.Variants)
	assert.Empty(t, target.Variants)
}

func TestBlockModel_ToEntity(t *testing.T) {
	b, err := (&blockModel{ID: "b1", Kind: "image", URL: "https://x/y.png"}).toEntity()
	require.NoError(t, err)
	img, ok := b.(entity.ImageBlock)
	require.True(t, ok)
	assert.Equal(t, "https://x/y.png", img.URL)

	_, err = (&blockModel{ID: "b2", Kind: "video"}).toEntity()
	assert.Error(t, err)
}
