package chat

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creative-canvas-api/internal/config"
	"creative-canvas-api/internal/domain/service"
	"creative-canvas-api/internal/infrastructure/persistence/memory"
)

func loadDefaultOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("app:\n  name: canvas\n"), 0o644))
	cfg, err := config.LoadFrom(dir)
	require.NoError(t, err)
	return OptionsFromConfig(cfg)
}

func TestOptionsFromConfig_DefaultRouting(t *testing.T) {
	opts := loadDefaultOptions(t)

	cases := []struct {
		text  string
		model string
		want  Path
	}{
		{"Generate creative for spring sale", "gpt-4o-mini", PathCreative},
		{"please MAKE AN AD for the launch", "gpt-4o-mini", PathCreative},
		{"Generate creative for spring sale", "gpt-image-1", PathImage},
		{"What colors work for spring?", "gpt-4o-mini", PathStream},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, opts.route(tc.text, tc.model), "%q with %s", tc.text, tc.model)
	}
}

func TestSend_DefaultKeywordsRouteToCreativePath(t *testing.T) {
	clock := newFakeClock()
	gw := &fakeGateway{}
	ctrl := NewController(testBoard, testBlock, Deps{
		Repo:    memory.NewChatStore(),
		Blocks:  memory.NewCanvasStore(),
		Gateway: gw,
		Clock:   clock.Now,
	}, loadDefaultOptions(t))

	res, err := ctrl.Send(context.Background(), "Generate creative for spring sale", nil)
	require.NoError(t, err)

	assert.Equal(t, PathCreative, res.Path)
	streams, invokes := gw.calls()
	assert.Zero(t, streams)
	assert.Equal(t, 1, invokes)
	assert.Equal(t, service.ModeCreative, gw.lastInvoke().Mode)
	assert.Equal(t, "gpt-4o-mini", gw.lastInvoke().Model)
}
