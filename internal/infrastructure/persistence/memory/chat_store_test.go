package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creative-canvas-api/internal/domain/entity"
)

func seedSession(t *testing.T, s *ChatStore, contents ...string) *entity.ChatSession {
	t.Helper()
	ctx := context.Background()
	sess := entity.NewChatSession("board-1", "block-1", "t")
	require.NoError(t, s.CreateSession(ctx, sess))
	for i, c := range contents {
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		require.NoError(t, s.AppendMessage(ctx, entity.NewChatMessage(sess.ID, role, c)))
	}
	return sess
}

func TestChatStore_AppendAndListInOrder(t *testing.T) {
	s := NewChatStore()
	sess := seedSession(t, s, "m1", "m2", "m3")

	msgs, err := s.ListMessages(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, want := range []string{"m1", "m2", "m3"} {
		assert.Equal(t, want, msgs[i].Content)
		assert.NotEmpty(t, msgs[i].ID)
	}
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))
}

func TestChatStore_ListReturnsCopies(t *testing.T) {
	s := NewChatStore()
	sess := seedSession(t, s, "original")

	msgs, _ := s.ListMessages(context.Background(), sess.ID)
	msgs[0].Content = "mutated"

	again, _ := s.ListMessages(context.Background(), sess.ID)
	assert.Equal(t, "original", again[0].Content)
}

func TestChatStore_UpdateAndDeleteScopedToSession(t *testing.T) {
	ctx := context.Background()
	s := NewChatStore()
	a := seedSession(t, s, "a1")
	b := seedSession(t, s, "b1")

	aMsgs, _ := s.ListMessages(ctx, a.ID)
	require.NoError(t, s.UpdateMessage(ctx, b.ID, aMsgs[0].ID, "hijack"))
	require.NoError(t, s.DeleteMessage(ctx, b.ID, aMsgs[0].ID))

	aMsgs, _ = s.ListMessages(ctx, a.ID)
	require.Len(t, aMsgs, 1)
	assert.Equal(t, "a1", aMsgs[0].Content)

	require.NoError(t, s.UpdateMessage(ctx, a.ID, aMsgs[0].ID, "edited"))
	aMsgs, _ = s.ListMessages(ctx, a.ID)
	assert.Equal(t, "edited", aMsgs[0].Content)

	require.NoError(t, s.DeleteMessage(ctx, a.ID, aMsgs[0].ID))
	aMsgs, _ = s.ListMessages(ctx, a.ID)
	assert.Empty(t, aMsgs)

	bMsgs, _ := s.ListMessages(ctx, b.ID)
	assert.Len(t, bMsgs, 1)
}

func TestChatStore_BranchCopiesMessages(t *testing.T) {
	ctx := context.Background()
	s := NewChatStore()
	src := seedSession(t, s, "q", "a", "q2")
	msgs, _ := s.ListMessages(ctx, src.ID)

	branch := entity.NewChatSession(src.BoardID, src.BlockID, "branch")
	require.NoError(t, s.BranchSession(ctx, branch, msgs[:2]))
	require.NotEmpty(t, branch.ID)

	copied, err := s.ListMessages(ctx, branch.ID)
	require.NoError(t, err)
	require.Len(t, copied, 2)
	assert.Equal(t, "q", copied[0].Content)
	assert.Equal(t, "a", copied[1].Content)
	assert.NotEqual(t, msgs[0].ID, copied[0].ID)
	assert.Equal(t, branch.ID, copied[0].SessionID)

	orig, _ := s.ListMessages(ctx, src.ID)
	assert.Len(t, orig, 3)
}

func TestChatStore_SessionsNewestFirstAndDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := NewChatStore()
	first := seedSession(t, s, "x")
	second := seedSession(t, s)

	list, err := s.ListSessions(ctx, "board-1", "block-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	require.NoError(t, s.DeleteSession(ctx, first.ID))
	got, err := s.GetSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	msgs, _ := s.ListMessages(ctx, first.ID)
	assert.Empty(t, msgs)
}

func TestChatStore_SessionImages(t *testing.T) {
	ctx := context.Background()
	s := NewChatStore()
	sess := seedSession(t, s)

	msg := entity.NewChatMessage(sess.ID, entity.RoleAssistant, "")
	msg.Images = []string{"https://cdn.example.com/a.png"}
	msg.Creatives = []entity.AdCreative{
		{ImageData: "https://cdn.example.com/b.png"},
		{ImageData: "data:image/png;base64,AAAA"},
	}
	require.NoError(t, s.AppendMessage(ctx, msg))

	urls, err := s.ListSessionImages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"}, urls)
}

func TestCanvasStore_TargetsAndBlocks(t *testing.T) {
	ctx := context.Background()
	s := NewCanvasStore()

	got, err := s.GetTarget(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	s.PutTarget(&entity.CreativeTarget{ID: "t1", Name: "Facebook Ad"})
	require.NoError(t, s.ReplaceVariants(ctx, "t1", []entity.CreativeVariant{{ID: "v1", Headline: "H"}}))

	got, err = s.GetTarget(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got.Variants, 1)
	assert.Equal(t, "H", got.Variants[0].Headline)

	s.Connect("b", "n", entity.TextBlock{BlockBase: entity.BlockBase{ID: "x"}, Content: "c"})
	blocks, err := s.ListConnected(ctx, "b", "n")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, entity.BlockKindText, blocks[0].Kind())
}
