package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadFrom_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "app:\n  name: canvas\n")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "canvas", cfg.App.Name)
	assert.Equal(t, 100000, cfg.Chat.ContextTotalBudget)
	assert.Equal(t, 10000, cfg.Chat.ContextPerBlockBudget)
	assert.Equal(t, time.Second, cfg.Chat.SendCooldown)
	assert.Equal(t, 50*time.Millisecond, cfg.Chat.CoalesceInterval)
	assert.Equal(t, 5, cfg.Chat.MaxVisionImages)
	assert.Equal(t, 30*time.Minute, cfg.Chat.ControllerIdleTTL)
	assert.NotEmpty(t, cfg.Chat.CreativeKeywords)
	assert.Contains(t, cfg.LLM.ImageModels, "gpt-image-1")
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestLoadFrom_EnvPlaceholderAndOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
llm:
  base_url: ${CANVAS_TEST_LLM_URL:http://fallback}
  default_model: ${CANVAS_TEST_MODEL:base-model}
`)
	writeConfig(t, dir, "config.staging.yaml", `
chat:
  send_cooldown: 3s
`)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("CANVAS_TEST_LLM_URL", "http://gateway.internal")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "http://gateway.internal", cfg.LLM.BaseURL)
	assert.Equal(t, "base-model", cfg.LLM.DefaultModel)
	assert.Equal(t, 3*time.Second, cfg.Chat.SendCooldown)
}

func TestLoadFrom_MissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
chat:
  context_total_budget: 100
  context_per_block_budget: 500
`)
	_, err := LoadFrom(dir)
	require.Error(t, err)

	writeConfig(t, dir, "config.yaml", "database:\n  driver: sqlite\n")
	_, err = LoadFrom(dir)
	require.Error(t, err)
}

func TestExpandEnv_KeepsUndefined(t *testing.T) {
	assert.Equal(t, "x=${CANVAS_SURELY_UNDEFINED}", expandEnv("x=${CANVAS_SURELY_UNDEFINED}"))
	assert.Equal(t, "x=", expandEnv("x=${CANVAS_SURELY_UNDEFINED:}"))
}
